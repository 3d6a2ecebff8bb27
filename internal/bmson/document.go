package bmson

type document struct {
	Version       string         `json:"version"`
	Info          info           `json:"info"`
	Lines         []barLine      `json:"lines"`
	BPMEvents     []bpmEvent     `json:"bpm_events"`
	StopEvents    []stopEvent    `json:"stop_events"`
	ScrollEvents  []scrollEvent  `json:"scroll_events"`
	SoundChannels []soundChannel `json:"sound_channels"`
	BGA           *bga           `json:"bga"`
	MineChannels  []mineChannel  `json:"mine_channels"`
	KeyChannels   []mineChannel  `json:"key_channels"`
}

type info struct {
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle"`
	Genre         string   `json:"genre"`
	Artist        string   `json:"artist"`
	Subartists    []string `json:"subartists"`
	ModeHint      string   `json:"mode_hint"`
	ChartName     string   `json:"chart_name"`
	JudgeRank     int      `json:"judge_rank"`
	Total         float64  `json:"total"`
	InitBPM       float64  `json:"init_bpm"`
	Level         int      `json:"level"`
	BackImage     string   `json:"back_image"`
	EyecatchImage string   `json:"eyecatch_image"`
	BannerImage   string   `json:"banner_image"`
	PreviewMusic  string   `json:"preview_music"`
	Resolution    int      `json:"resolution"`
	LNType        int      `json:"ln_type"`
}

// newDocument returns a document carrying the format defaults for fields a
// file may leave out.
func newDocument() *document {
	return &document{Info: info{
		ModeHint:   "beat-7k",
		JudgeRank:  100,
		Total:      100,
		Resolution: 240,
	}}
}

type barLine struct {
	Y int64 `json:"y"`
	K int   `json:"k"`
}

type bpmEvent struct {
	Y   int64   `json:"y"`
	BPM float64 `json:"bpm"`
}

type stopEvent struct {
	Y        int64 `json:"y"`
	Duration int64 `json:"duration"`
}

type scrollEvent struct {
	Y    int64    `json:"y"`
	Rate *float64 `json:"rate"`
}

func (e scrollEvent) rate() float64 {
	if e.Rate == nil {
		return 1
	}
	return *e.Rate
}

type soundNote struct {
	X  int   `json:"x"`
	Y  int64 `json:"y"`
	L  int64 `json:"l"`
	C  bool  `json:"c"`
	T  int   `json:"t"`
	Up bool  `json:"up"`
}

type soundChannel struct {
	Name  string      `json:"name"`
	Notes []soundNote `json:"notes"`
}

type mineNote struct {
	X      int     `json:"x"`
	Y      int64   `json:"y"`
	Damage float64 `json:"damage"`
}

type mineChannel struct {
	Name  string     `json:"name"`
	Notes []mineNote `json:"notes"`
}

type bga struct {
	Header      []bgaHeader `json:"bga_header"`
	BGAEvents   []bgaNote   `json:"bga_events"`
	LayerEvents []bgaNote   `json:"layer_events"`
	PoorEvents  []bgaNote   `json:"poor_events"`
}

type bgaHeader struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type bgaNote struct {
	Y  int64 `json:"y"`
	ID int   `json:"id"`
}
