package tracking

import "encoding/base64"

// Pixel is a 1x1 transparent PNG. It is returned by the open beacon no matter
// what, a missing image breaks rendering in email clients.
var Pixel []byte

func init() {
	var err error
	Pixel, err = base64.StdEncoding.DecodeString(
		"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8/5+hHgAHggJ/PchI7wAAAABJRU5ErkJggg==")
	if err != nil {
		panic(err)
	}
}
