package language

import "strings"

type entry struct {
	code2   string
	code3   string
	display string
	words   []string
}

// Languages WhisperX is commonly run with for this tool's audience.
var languages = []entry{
	{"zh", "zho", "Chinese", []string{"chinese", "mandarin", "chi", "cmn"}},
	{"en", "eng", "English", []string{"english"}},
	{"ja", "jpn", "Japanese", []string{"japanese"}},
	{"ko", "kor", "Korean", []string{"korean"}},
	{"fr", "fra", "French", []string{"french", "fre"}},
	{"de", "deu", "German", []string{"german", "ger"}},
	{"es", "spa", "Spanish", []string{"spanish"}},
	{"ru", "rus", "Russian", []string{"russian"}},
	{"pt", "por", "Portuguese", []string{"portuguese"}},
	{"it", "ita", "Italian", []string{"italian"}},
}

var index = func() map[string]*entry {
	m := make(map[string]*entry, len(languages)*4)
	for i := range languages {
		e := &languages[i]
		m[e.code2] = e
		m[e.code3] = e
		for _, w := range e.words {
			m[w] = e
		}
	}
	return m
}()

// ToISO2 converts a recognized code or name to ISO 639-1. Unknown two-letter
// codes pass through; anything else yields "".
func ToISO2(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if e, ok := index[code]; ok {
		return e.code2
	}
	if len(code) == 2 {
		return code
	}
	return ""
}

// DisplayName returns a human-readable name. Empty input means auto-detect.
func DisplayName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "auto-detect"
	}
	if e, ok := index[strings.ToLower(code)]; ok {
		return e.display
	}
	return strings.ToUpper(code)
}
