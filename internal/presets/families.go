package presets

import "github.com/alx-home/msfs2024-vfrnav-efb/internal/protocol"

// Family names, also used as settings keys.
const (
	KindFuel      = "fuel"
	KindDeviation = "deviation"
)

type (
	FuelStore      = Store[protocol.FuelCurve]
	DeviationStore = Store[[2]int16]
)

// Fuel is the fuel consumption preset family.
var Fuel = Family[protocol.FuelCurve]{
	Kind: KindFuel,
	File: "FuelPresets.json",
	Curve: func(p Preset[protocol.FuelCurve]) protocol.Content {
		return protocol.FuelPresetCurve{Name: p.Name, Date: p.Date, Curve: p.Curve}
	},
	Delete: func(name string, date uint64) protocol.Content {
		return protocol.DeleteFuelPreset{Name: name, Date: date}
	},
	GetCurve: func(name string) protocol.Content {
		return protocol.GetFuelCurve{Name: name}
	},
	Default: func(name string, date uint64) protocol.Content {
		return protocol.DefaultFuelPreset{Name: name, Date: date}
	},
	Seed: func() []Preset[protocol.FuelCurve] {
		return []Preset[protocol.FuelCurve]{{Name: H125Name, Date: 0, Curve: H125Curve()}}
	},
}

// Deviation is the compass deviation preset family.
var Deviation = Family[[2]int16]{
	Kind: KindDeviation,
	File: "DeviationPresets.json",
	Curve: func(p Preset[[2]int16]) protocol.Content {
		return protocol.DeviationCurve{Name: p.Name, Date: p.Date, Curve: p.Curve}
	},
	Delete: func(name string, date uint64) protocol.Content {
		return protocol.DeleteDeviationPreset{Name: name, Date: date}
	},
	GetCurve: func(name string) protocol.Content {
		return protocol.GetDeviationCurve{Name: name}
	},
	Default: func(name string, date uint64) protocol.Content {
		return protocol.DefaultDeviationPreset{Name: name, Date: date}
	},
}

// NewFuel returns the fuel store persisting under dir.
func NewFuel(dir string, defaults Defaults, opts ...Option) *FuelStore {
	return New(Fuel, dir, defaults, opts...)
}

// NewDeviation returns the deviation store persisting under dir.
func NewDeviation(dir string, defaults Defaults, opts ...Option) *DeviationStore {
	return New(Deviation, dir, defaults, opts...)
}

// H125Name is the preset installed when no fuel file exists.
const H125Name = "real h125"

// H125Curve returns the measured H125 consumption at full thrust, in
// (temperature °C, l/h) pairs per altitude.
func H125Curve() []protocol.FuelCurve {
	return []protocol.FuelCurve{{
		Thrust: 100,
		Points: []protocol.FuelPoint{
			{Alt: 0, Values: [][2]float64{{-40, 177}, {17, 189}, {30, 179}, {40, 165}, {50, 151}}},
			{Alt: 2000, Values: [][2]float64{{-40, 173}, {7, 184}, {25, 170}, {50, 139}}},
			{Alt: 4000, Values: [][2]float64{{-40, 173}, {-4, 180}, {22, 160}, {50, 126}}},
			{Alt: 6000, Values: [][2]float64{{-40, 173}, {-15, 177}, {17, 151}, {50, 122}}},
			{Alt: 8000, Values: [][2]float64{{-40, 173}, {-30, 177}, {-10, 158}, {15, 142}, {50, 111}}},
			{Alt: 10000, Values: [][2]float64{{-40, 173}, {-15, 151}, {10, 134}, {50, 103}}},
			{Alt: 12000, Values: [][2]float64{{-40, 158}, {-20, 142}, {5, 126}, {50, 92}}},
			{Alt: 14000, Values: [][2]float64{{-40, 146}, {-20, 132}, {0, 120}, {50, 84}}},
			{Alt: 16000, Values: [][2]float64{{-40, 135}, {-25, 123}, {-10, 116}, {2, 110}, {50, 75}}},
			{Alt: 25000, Values: [][2]float64{{-40, 135}, {-25, 123}, {-10, 116}, {2, 110}, {50, 75}}},
		},
	}}
}
