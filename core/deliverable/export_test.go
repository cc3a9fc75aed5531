package deliverable

import "time"

// SetNowFunc swaps the service clock; the returned func restores it.
func SetNowFunc(f func() time.Time) (restore func()) {
	orig := nowFunc
	nowFunc = f
	return func() { nowFunc = orig }
}
