package device

func newPlatformEnumerator() Enumerator {
	return Listing{
		InputFormat: "dshow",
		Parse:       ParseDShow,
	}
}
