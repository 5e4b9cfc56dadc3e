// Package msgs defines the messages exchanged between the host tool and the
// device over the serial link, and their Typed envelope.
package msgs

// Host sends commands (Message), the device answers each command with
// exactly one reply (Response) in order of receipt.
//
// Producer: host tool
// Consumer: device broker
