//go:build !debug

package valueobject

const strictStatuses = false
