package service

// Limits: ограничения размера и ёмкости, общие для REST и WS.
type Limits struct {
	MaxTextLen        int
	MaxURLLen         int
	MaxFileNameLen    int
	MaxMimeLen        int
	MaxReactionLen    int
	MaxPins           int
	MaxForwardTargets int

	DefaultPageSize int
	MaxPageSize     int
	MaxSearchPage   int
	MaxQueryLen     int
	SnippetRadius   int

	// ApplyBlocksOnFanout скрывает живые события от пользователей,
	// связанных с автором блокировкой в любую сторону.
	ApplyBlocksOnFanout bool

	// MediaBaseURL: если задан, ссылки на вложения принимаются только с этим префиксом.
	MediaBaseURL string
}

func DefaultLimits() Limits {
	return Limits{
		MaxTextLen:        4000,
		MaxURLLen:         2048,
		MaxFileNameLen:    255,
		MaxMimeLen:        127,
		MaxReactionLen:    32,
		MaxPins:           5,
		MaxForwardTargets: 10,
		DefaultPageSize:   50,
		MaxPageSize:       100,
		MaxSearchPage:     50,
		MaxQueryLen:       200,
		SnippetRadius:     40,
	}
}

// withDefaults заполняет нулевые поля значениями по умолчанию.
func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	fill := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&l.MaxTextLen, d.MaxTextLen)
	fill(&l.MaxURLLen, d.MaxURLLen)
	fill(&l.MaxFileNameLen, d.MaxFileNameLen)
	fill(&l.MaxMimeLen, d.MaxMimeLen)
	fill(&l.MaxReactionLen, d.MaxReactionLen)
	fill(&l.MaxPins, d.MaxPins)
	fill(&l.MaxForwardTargets, d.MaxForwardTargets)
	fill(&l.DefaultPageSize, d.DefaultPageSize)
	fill(&l.MaxPageSize, d.MaxPageSize)
	fill(&l.MaxSearchPage, d.MaxSearchPage)
	fill(&l.MaxQueryLen, d.MaxQueryLen)
	fill(&l.SnippetRadius, d.SnippetRadius)
	return l
}

func clampLimit(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
