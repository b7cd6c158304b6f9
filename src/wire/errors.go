package wire

import "github.com/qubicnet/qgossip/src/common"

func formatErr(op string, format string, args ...interface{}) error {
	return common.Formatf(op, format, args...)
}

func expectSize(op string, b []byte, size int) error {
	if len(b) != size {
		return formatErr(op, "payload is %d bytes, expected %d", len(b), size)
	}
	return nil
}
