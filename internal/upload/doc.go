// Package upload moves a recorded audio payload to the contract service.
// Each logical attempt reserves a fresh single-use upload slot and transmits
// the payload to it; a slot is never reused after a failed transmission.
package upload
