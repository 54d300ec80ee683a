package orders

import (
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

// QRCode renders the order code as a PNG, the payload staff scan at pickup.
func QRCode(orderCode string) ([]byte, error) {
	return qrcode.Encode(orderCode, qrcode.Medium, qrSize)
}
