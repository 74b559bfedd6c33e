package device

func newPlatformEnumerator() Enumerator {
	return V4L2{}
}
