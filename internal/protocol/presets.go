package protocol

// PresetInfo announces one preset in a Presets batch.
type PresetInfo struct {
	Name   string `json:"name"`
	Date   uint64 `json:"date"`
	Remove bool   `json:"remove"`
}

// FuelPoint is one altitude row of a fuel curve: (temperature, consumption)
// pairs.
type FuelPoint struct {
	Alt    uint32       `json:"alt"`
	Values [][2]float64 `json:"values"`
}

// FuelCurve is the consumption table for one thrust setting.
type FuelCurve struct {
	Thrust uint32      `json:"thrust"`
	Points []FuelPoint `json:"points"`
}

// FuelPresets is a peer's view of its fuel presets.
type FuelPresets struct {
	Data []PresetInfo `json:"data"`
}

func (FuelPresets) Kind() Kind { return KindFuelPresets }

// FuelPresetCurve carries a full fuel preset. An empty curve is a deletion.
type FuelPresetCurve struct {
	Name  string      `json:"name"`
	Date  uint64      `json:"date"`
	Curve []FuelCurve `json:"curve"`
}

func (FuelPresetCurve) Kind() Kind { return KindFuelCurve }

type GetFuelCurve struct {
	Name string `json:"name"`
}

func (GetFuelCurve) Kind() Kind { return KindGetFuelCurve }

type DeleteFuelPreset struct {
	Name string `json:"name"`
	Date uint64 `json:"date"`
}

func (DeleteFuelPreset) Kind() Kind { return KindDeleteFuelPreset }

type DefaultFuelPreset struct {
	Name string `json:"name"`
	Date uint64 `json:"date"`
}

func (DefaultFuelPreset) Kind() Kind { return KindDefaultFuelPreset }

type GetFuelPresets struct{}

func (GetFuelPresets) Kind() Kind { return KindGetFuelPresets }

// DeviationPresets is a peer's view of its compass deviation presets.
type DeviationPresets struct {
	Data []PresetInfo `json:"data"`
}

func (DeviationPresets) Kind() Kind { return KindDeviationPresets }

// DeviationCurve carries (heading, deviation) pairs. An empty curve is a
// deletion.
type DeviationCurve struct {
	Name  string     `json:"name"`
	Date  uint64     `json:"date"`
	Curve [][2]int16 `json:"curve"`
}

func (DeviationCurve) Kind() Kind { return KindDeviationCurve }

type GetDeviationCurve struct {
	Name string `json:"name"`
}

func (GetDeviationCurve) Kind() Kind { return KindGetDeviationCurve }

type DeleteDeviationPreset struct {
	Name string `json:"name"`
	Date uint64 `json:"date"`
}

func (DeleteDeviationPreset) Kind() Kind { return KindDeleteDevPreset }

type DefaultDeviationPreset struct {
	Name string `json:"name"`
	Date uint64 `json:"date"`
}

func (DefaultDeviationPreset) Kind() Kind { return KindDefaultDevPreset }

type GetDeviationPresets struct{}

func (GetDeviationPresets) Kind() Kind { return KindGetDeviationPresets }
