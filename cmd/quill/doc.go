// Command quill is the CLI for dictating, transcribing, and converting
// audio recordings into drafted contracts via the contract backend.
package main
