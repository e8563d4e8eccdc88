// Package dedupe tracks webhook event ids in a time-based cache so that
// platform redeliveries are not dispatched twice.
package dedupe
