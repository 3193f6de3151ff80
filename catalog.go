package nibe

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// PumpModel identifies a heat pump register map.
type PumpModel string

// Supported heat pump models.
const (
	F1145 PumpModel = "F1145"
	F1245 PumpModel = "F1245"
)

// PumpModels lists the supported models.
var PumpModels = []PumpModel{F1145, F1245}

// ParsePumpModel returns the model named s, ignoring case.
func ParsePumpModel(s string) (PumpModel, error) {
	for _, m := range PumpModels {
		if strings.EqualFold(string(m), s) {
			return m, nil
		}
	}
	return "", fmt.Errorf("nibe: %q is not valid pump model", s)
}

// DataType is the register representation of a variable.
type DataType int

// Register data types.
const (
	U8 DataType = iota
	U16
	U32
	S8
	S16
	S32
)

var dataTypeNames = [...]string{"U8", "U16", "U32", "S8", "S16", "S32"}

func (t DataType) String() string {
	if t < 0 || int(t) >= len(dataTypeNames) {
		return fmt.Sprintf("DataType(%d)", int(t))
	}
	return dataTypeNames[t]
}

// Signed reports whether t is a signed type.
func (t DataType) Signed() bool {
	return t == S8 || t == S16 || t == S32
}

// Kind tells sensors from writable settings.
type Kind int

// Variable kinds.
const (
	Sensor Kind = iota
	Setting
)

func (k Kind) String() string {
	if k == Setting {
		return "Setting"
	}
	return "Sensor"
}

// VariableInfo describes one register of a heat pump model.
type VariableInfo struct {
	Name   string
	Factor int32
	Type   DataType
	Kind   Kind
}

// Lookup returns the variable at coil for model. Unknown coils are not an
// error, ok is false.
func Lookup(model PumpModel, coil uint16) (info VariableInfo, ok bool) {
	table, found := catalogs[model]
	if !found {
		return VariableInfo{}, false
	}
	info, ok = table[coil]
	return
}

// Coils returns the known coil addresses of model in ascending order.
func Coils(model PumpModel) []uint16 {
	table := catalogs[model]
	coils := make([]uint16, 0, len(table))
	for coil := range table {
		coils = append(coils, coil)
	}
	slices.Sort(coils)
	return coils
}

var catalogs = map[PumpModel]map[uint16]VariableInfo{
	F1145: f1x45Variables,
	F1245: f1x45Variables,
}

// Normalize truncates or sign extends raw to the width of the data type.
func (v VariableInfo) Normalize(raw int32) int64 {
	switch v.Type {
	case U8:
		return int64(raw & 0xFF)
	case U16:
		return int64(raw & 0xFFFF)
	case U32:
		return int64(uint32(raw))
	case S8:
		return int64(int8(raw))
	case S16:
		return int64(int16(raw))
	default:
		return int64(raw)
	}
}

// Scale converts a raw register value to its physical value. Signed values
// are rounded half to even to two decimals.
func (v VariableInfo) Scale(raw int32) float64 {
	value := float64(v.Normalize(raw)) / float64(v.factor())
	if v.Type.Signed() {
		return math.RoundToEven(value*100) / 100
	}
	return value
}

// Raw converts a physical value to the register value written to the heat
// pump.
func (v VariableInfo) Raw(value float64) (int32, error) {
	raw := math.Round(value * float64(v.factor()))
	lo, hi := v.Type.bounds()
	if raw < lo || raw > hi {
		return 0, fmt.Errorf("nibe: value %v of %s out of range for %v", value, v.Name, v.Type)
	}
	return int32(int64(raw)), nil
}

func (v VariableInfo) factor() int32 {
	if v.Factor <= 0 {
		return 1
	}
	return v.Factor
}

func (t DataType) bounds() (lo, hi float64) {
	switch t {
	case U8:
		return 0, math.MaxUint8
	case U16:
		return 0, math.MaxUint16
	case U32:
		return 0, math.MaxUint32
	case S8:
		return math.MinInt8, math.MaxInt8
	case S16:
		return math.MinInt16, math.MaxInt16
	default:
		return math.MinInt32, math.MaxInt32
	}
}
