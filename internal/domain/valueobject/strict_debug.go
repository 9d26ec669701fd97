//go:build debug

package valueobject

const strictStatuses = true
