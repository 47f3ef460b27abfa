//go:build release

package node

const Checked = false
