package device

func newPlatformEnumerator() Enumerator {
	return Listing{
		InputFormat: "avfoundation",
		Parse:       ParseAVFoundation,
	}
}
