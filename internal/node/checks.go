//go:build !release

package node

// Checked enables flag verification on downcasts and index asserts.
const Checked = true
