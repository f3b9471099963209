package telnet

import (
	"encoding/binary"
	"fmt"
)

// DataType is the first byte of a TN3270E header.
type DataType byte

const (
	Dt3270Data   DataType = 0x00
	DtSCSData    DataType = 0x01
	DtResponse   DataType = 0x02
	DtBindImage  DataType = 0x03
	DtUnbind     DataType = 0x04
	DtNVTData    DataType = 0x05
	DtRequest    DataType = 0x06
	DtSSCPLUData DataType = 0x07
	DtPrintEOJ   DataType = 0x08
)

func (d DataType) String() string {
	str, ok := map[DataType]string{
		Dt3270Data:   "3270-DATA",
		DtSCSData:    "SCS-DATA",
		DtResponse:   "RESPONSE",
		DtBindImage:  "BIND-IMAGE",
		DtUnbind:     "UNBIND",
		DtNVTData:    "NVT-DATA",
		DtRequest:    "REQUEST",
		DtSSCPLUData: "SSCP-LU-DATA",
		DtPrintEOJ:   "PRINT-EOJ",
	}[d]
	if ok {
		return str
	}
	return fmt.Sprintf("0x%02x", byte(d))
}

// Request flag values.
const (
	RqErrCondCleared = 0x00
)

// Response flag values on data records.
const (
	RspNoResponse     = 0x00
	RspErrorResponse  = 0x01
	RspAlwaysResponse = 0x02
)

// Response flag values on RESPONSE records.
const (
	RspPositive = 0x00
	RspNegative = 0x01
)

// Response bodies.
const (
	posDeviceEnd = 0x00

	negCommandReject        = 0x00
	negInterventionRequired = 0x01
	negOperationCheck       = 0x02
	negComponentDisconnect  = 0x03
)

// HeaderSize is the length of a TN3270E header on the wire.
const HeaderSize = 5

// Header is the TN3270E record header.
type Header struct {
	DataType     DataType
	RequestFlag  byte
	ResponseFlag byte
	Seq          uint16
}

// ParseHeader splits a TN3270E record into its header and body.
func ParseHeader(rec []byte) (h Header, body []byte, ok bool) {
	if len(rec) < HeaderSize {
		return h, nil, false
	}
	h = Header{
		DataType:     DataType(rec[0]),
		RequestFlag:  rec[1],
		ResponseFlag: rec[2],
		Seq:          binary.BigEndian.Uint16(rec[3:5]),
	}
	return h, rec[HeaderSize:], true
}

// Bytes returns the unescaped wire form of the header.
func (h Header) Bytes() []byte {
	buf := []byte{byte(h.DataType), h.RequestFlag, h.ResponseFlag, 0, 0}
	binary.BigEndian.PutUint16(buf[3:], h.Seq)
	return buf
}

func (h Header) String() string {
	return fmt.Sprintf("%s req=0x%02x rsp=0x%02x seq=%d", h.DataType, h.RequestFlag, h.ResponseFlag, h.Seq)
}
