package zcl

// ZCL data type IDs used by the standard clusters.
const (
	TypeNoData   uint8 = 0x00
	TypeBool     uint8 = 0x10
	TypeBitmap8  uint8 = 0x18
	TypeBitmap16 uint8 = 0x19
	TypeUint8    uint8 = 0x20
	TypeUint16   uint8 = 0x21
	TypeUint24   uint8 = 0x22
	TypeUint32   uint8 = 0x23
	TypeUint48   uint8 = 0x25
	TypeInt8     uint8 = 0x28
	TypeInt16    uint8 = 0x29
	TypeInt24    uint8 = 0x2A
	TypeEnum8    uint8 = 0x30
	TypeEnum16   uint8 = 0x31
	TypeCharStr  uint8 = 0x42
	TypeEUI64    uint8 = 0xF0
)

type typeInfo struct {
	name string
	// analog types carry a measured quantity; a reportable-change threshold
	// only applies to them.
	analog bool
}

var types = map[uint8]typeInfo{
	TypeNoData:   {name: "nodata"},
	TypeBool:     {name: "bool"},
	TypeBitmap8:  {name: "map8"},
	TypeBitmap16: {name: "map16"},
	TypeUint8:    {name: "uint8", analog: true},
	TypeUint16:   {name: "uint16", analog: true},
	TypeUint24:   {name: "uint24", analog: true},
	TypeUint32:   {name: "uint32", analog: true},
	TypeUint48:   {name: "uint48", analog: true},
	TypeInt8:     {name: "int8", analog: true},
	TypeInt16:    {name: "int16", analog: true},
	TypeInt24:    {name: "int24", analog: true},
	TypeEnum8:    {name: "enum8"},
	TypeEnum16:   {name: "enum16"},
	TypeCharStr:  {name: "string"},
	TypeEUI64:    {name: "EUI64"},
}

// TypeName returns the ZCL short name of a type, or "unknown".
func TypeName(typeID uint8) string {
	if t, ok := types[typeID]; ok {
		return t.name
	}
	return "unknown"
}

// IsAnalog reports whether values of the type report on a change threshold
// rather than on every change.
func IsAnalog(typeID uint8) bool {
	return types[typeID].analog
}
