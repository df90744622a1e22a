package domain

// DeviceKind is the closed enumeration of PLC-instrumented machines. The
// integer codes match the `deviceType` field on the raw data topic.
type DeviceKind int

const (
	KindPrensaHidraulica1 DeviceKind = 1
	KindPrensaHidraulica2 DeviceKind = 2
	KindEntradaSecador    DeviceKind = 3
	KindSalidaSecador     DeviceKind = 4
	KindEsmalte           DeviceKind = 5
	KindEntradaHorno      DeviceKind = 6
	KindSalidaHorno       DeviceKind = 7
	KindCalidad           DeviceKind = 8
)

// AllKinds lists every known device kind in machine-id order.
var AllKinds = []DeviceKind{
	KindPrensaHidraulica1,
	KindPrensaHidraulica2,
	KindEntradaSecador,
	KindSalidaSecador,
	KindEsmalte,
	KindEntradaHorno,
	KindSalidaHorno,
	KindCalidad,
}

// KindFromInt resolves a deviceType code. ok is false for unknown codes,
// which route to the Default processor.
func KindFromInt(v int) (DeviceKind, bool) {
	if v >= 1 && v <= 8 {
		return DeviceKind(v), true
	}
	return 0, false
}

// MachineID is the numeric machine identifier published as `maquina_id`.
func (k DeviceKind) MachineID() int {
	return int(k)
}

// Slug is the machine segment of the outbound ISA-95 topic.
func (k DeviceKind) Slug() string {
	switch k {
	case KindPrensaHidraulica1:
		return "prensa_hidraulica1"
	case KindPrensaHidraulica2:
		return "prensa_hidraulica2"
	case KindEntradaSecador:
		return "entrada_secador"
	case KindSalidaSecador:
		return "salida_secador"
	case KindEsmalte:
		return "esmalte"
	case KindEntradaHorno:
		return "entrada_horno"
	case KindSalidaHorno:
		return "salida_horno"
	case KindCalidad:
		return "calidad"
	}
	return "unknown"
}

// String returns the engineering name used in logs.
func (k DeviceKind) String() string {
	switch k {
	case KindPrensaHidraulica1:
		return "PH_1"
	case KindPrensaHidraulica2:
		return "PH_2"
	case KindEntradaSecador:
		return "Entrada_secador"
	case KindSalidaSecador:
		return "Salida_secador"
	case KindEsmalte:
		return "Esmalte"
	case KindEntradaHorno:
		return "Entrada_horno"
	case KindSalidaHorno:
		return "Salida_horno"
	case KindCalidad:
		return "Calidad"
	}
	return "Unknown"
}
