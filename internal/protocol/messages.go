package protocol

// Kind is the reserved key identifying a content variant.
type Kind string

// Variants handled by the server itself.
const (
	KindHelloWorld         Kind = "__HELLO_WORLD__"
	KindByeBye             Kind = "__BYE_BYE__"
	KindSetID              Kind = "__SET_ID__"
	KindServerState        Kind = "__SERVER_STATE__"
	KindGetServerState     Kind = "__GET_SERVER_STATE__"
	KindEFBState           Kind = "__EFB_STATE__"
	KindGetEFBState        Kind = "__GET_EFB_STATE__"
	KindFileExists         Kind = "__FILE_EXISTS__"
	KindFileExistsResponse Kind = "__FILE_EXISTS_RESPONSE__"
	KindOpenFile           Kind = "__OPEN_FILE__"
	KindOpenFileResponse   Kind = "__OPEN_FILE_RESPONSE__"
	KindGetFile            Kind = "__GET_FILE__"
	KindGetFileResponse    Kind = "__GET_FILE_RESPONSE__"
	KindGetRecords         Kind = "__GET_RECORDS__"
	KindGetFacilities      Kind = "__GET_FACILITIES__"

	KindFuelPresets         Kind = "__FUEL_PRESETS__"
	KindFuelCurve           Kind = "__FUEL_CURVE__"
	KindGetFuelCurve        Kind = "__GET_FUEL_CURVE__"
	KindDeleteFuelPreset    Kind = "__DELETE_FUEL_PRESET__"
	KindDefaultFuelPreset   Kind = "__DEFAULT_FUEL_PRESET__"
	KindGetFuelPresets      Kind = "__GET_FUEL_PRESETS__"
	KindDeviationPresets    Kind = "__DEVIATION_PRESETS__"
	KindDeviationCurve      Kind = "__DEVIATION_CURVE__"
	KindGetDeviationCurve   Kind = "__GET_DEVIATION_CURVE__"
	KindDeleteDevPreset     Kind = "__DELETE_DEVIATION_PRESET__"
	KindDefaultDevPreset    Kind = "__DEFAULT_DEVIATION_PRESET__"
	KindGetDeviationPresets Kind = "__GET_DEVIATION_PRESETS__"
)

// Variants relayed between the simulator and the UI without interpretation.
const (
	KindEditRecord   Kind = "__EDIT_RECORD__"
	KindExportNav    Kind = "__EXPORT_NAV__"
	KindExportPdfs   Kind = "__EXPORT_PDFS__"
	KindFacilities   Kind = "__FACILITIES__"
	KindFuel         Kind = "__FUEL__"
	KindGetFuel      Kind = "__GET_FUEL__"
	KindGetMetar     Kind = "__GET_METAR__"
	KindGetRecord    Kind = "__GET_RECORD__"
	KindGetSettings  Kind = "__GET_SETTINGS__"
	KindImportNav    Kind = "__IMPORT_NAV__"
	KindMetar        Kind = "__METAR__"
	KindPlanePos     Kind = "__PLANE_POS__"
	KindPlanePoses   Kind = "__PLANE_POSES__"
	KindRecords      Kind = "__RECORDS__"
	KindRemoveRecord Kind = "__REMOVE_RECORD__"
	KindSettings     Kind = "__SETTINGS__"
	KindGetIcaos     Kind = "__GET_ICAOS__"
	KindIcaos        Kind = "__ICAOS__"
	KindGetLatLon    Kind = "__GET_LAT_LON__"
	KindLatLon       Kind = "__LAT_LON__"
)

var knownKinds = map[Kind]struct{}{
	KindHelloWorld: {}, KindByeBye: {}, KindSetID: {}, KindServerState: {},
	KindGetServerState: {}, KindEFBState: {}, KindGetEFBState: {},
	KindFileExists: {}, KindFileExistsResponse: {}, KindOpenFile: {},
	KindOpenFileResponse: {}, KindGetFile: {}, KindGetFileResponse: {},
	KindGetRecords: {}, KindGetFacilities: {},

	KindFuelPresets: {}, KindFuelCurve: {}, KindGetFuelCurve: {},
	KindDeleteFuelPreset: {}, KindDefaultFuelPreset: {}, KindGetFuelPresets: {},
	KindDeviationPresets: {}, KindDeviationCurve: {}, KindGetDeviationCurve: {},
	KindDeleteDevPreset: {}, KindDefaultDevPreset: {}, KindGetDeviationPresets: {},

	KindEditRecord: {}, KindExportNav: {}, KindExportPdfs: {}, KindFacilities: {},
	KindFuel: {}, KindGetFuel: {}, KindGetMetar: {}, KindGetRecord: {},
	KindGetSettings: {}, KindImportNav: {}, KindMetar: {}, KindPlanePos: {},
	KindPlanePoses: {}, KindRecords: {}, KindRemoveRecord: {}, KindSettings: {},
	KindGetIcaos: {}, KindIcaos: {}, KindGetLatLon: {}, KindLatLon: {},
}

// Known reports whether k is part of the protocol.
func (k Kind) Known() bool {
	_, ok := knownKinds[k]
	return ok
}

func (k Kind) String() string {
	return string(k)
}

// Peer types carried by HelloWorld.
const (
	PeerEFB    = "EFB"
	PeerWeb    = "Web"
	PeerServer = "Server"
)

// HelloWorld is the first frame of every connection.
type HelloWorld struct {
	Type string `json:"__HELLO_WORLD__"`
}

func (HelloWorld) Kind() Kind { return KindHelloWorld }

// ByeBye tells the simulator a UI surface went away.
type ByeBye struct {
	Type string `json:"__BYE_BYE__,omitempty"`
}

func (ByeBye) Kind() Kind { return KindByeBye }

// ServerState reports whether the server is running.
type ServerState struct {
	State bool `json:"state"`
}

func (ServerState) Kind() Kind { return KindServerState }

// GetServerState asks for a ServerState reply.
type GetServerState struct{}

func (GetServerState) Kind() Kind { return KindGetServerState }

// EFBState reports whether the simulator is connected.
type EFBState struct {
	State bool `json:"state"`
}

func (EFBState) Kind() Kind { return KindEFBState }

// GetEFBState asks for an EFBState reply.
type GetEFBState struct{}

func (GetEFBState) Kind() Kind { return KindGetEFBState }

// FileExists probes a local path. ID correlates the response.
type FileExists struct {
	ID   uint64 `json:"id"`
	Path string `json:"path"`
}

func (FileExists) Kind() Kind { return KindFileExists }

// FileExistsResponse answers FileExists.
type FileExistsResponse struct {
	ID     uint64 `json:"id"`
	Result bool   `json:"result"`
}

func (FileExistsResponse) Kind() Kind { return KindFileExistsResponse }

// Filter is one entry of a file dialog filter list.
type Filter struct {
	Name  string   `json:"name"`
	Value []string `json:"value"`
}

// OpenFile asks the server to show a file picker.
type OpenFile struct {
	ID      uint64   `json:"id"`
	Path    string   `json:"path"`
	Filters []Filter `json:"filters,omitempty"`
}

func (OpenFile) Kind() Kind { return KindOpenFile }

// OpenFileResponse carries the picked path, empty when cancelled.
type OpenFileResponse struct {
	ID   uint64 `json:"id"`
	Path string `json:"path"`
}

func (OpenFileResponse) Kind() Kind { return KindOpenFileResponse }

// GetFile asks for a file's content.
type GetFile struct {
	ID   uint64 `json:"id"`
	Path string `json:"path"`
}

func (GetFile) Kind() Kind { return KindGetFile }

// GetFileResponse carries base64 file content, empty when unreadable.
type GetFileResponse struct {
	ID   uint64 `json:"id"`
	Data string `json:"data"`
}

func (GetFileResponse) Kind() Kind { return KindGetFileResponse }

// GetRecords asks the simulator for its flight records.
type GetRecords struct{}

func (GetRecords) Kind() Kind { return KindGetRecords }

// GetFacilities asks the simulator for facilities around a position.
type GetFacilities struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (GetFacilities) Kind() Kind { return KindGetFacilities }
