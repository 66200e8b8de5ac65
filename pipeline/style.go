package pipeline

import (
	"regexp"
	"sort"
	"strings"

	"github.com/forPelevin/gomoji"
)

// StyleProfile characterizes how the device owner writes in one conversation.
// It is derived from the recent-interactions window because that window keeps
// short acknowledgments and original formatting intact.
type StyleProfile struct {
	BasicStats      StyleBasicStats     `json:"basic_stats"`
	Capitalization  CapitalizationStats `json:"capitalization"`
	Punctuation     PunctuationStats    `json:"punctuation"`
	Emoji           EmojiStats          `json:"emojis"`
	Structure       StructureStats      `json:"structure"`
	Language        LanguageStats       `json:"language_patterns"`
	Emotional       EmotionStats        `json:"emotional_patterns"`
	Examples        []string            `json:"examples"`
	Recommendations []string            `json:"recommendations"`
}

type StyleBasicStats struct {
	MessageCount    int     `json:"message_count"`
	AverageLength   float64 `json:"average_length"`
	AverageWords    float64 `json:"average_words"`
	ShortestMessage int     `json:"shortest_message"`
	LongestMessage  int     `json:"longest_message"`
	TotalWords      int     `json:"total_words"`
}

type CapitalizationStats struct {
	StartsCapitalRatio float64 `json:"starts_capital_ratio"`
	UsesAllCaps        bool    `json:"uses_all_caps"`
	Style              string  `json:"capital_style"`
}

type PunctuationStats struct {
	Periods                  int     `json:"periods"`
	Exclamations             int     `json:"exclamations"`
	Questions                int     `json:"questions"`
	EndsWithPunctuationRatio float64 `json:"ends_with_punctuation_ratio"`
	UsesEllipsis             bool    `json:"uses_ellipsis"`
	Style                    string  `json:"punctuation_style"`
}

type EmojiStats struct {
	UsesEmojis     bool     `json:"uses_emojis"`
	EmojiFrequency float64  `json:"emoji_frequency"`
	TotalEmojis    int      `json:"total_emojis"`
	MostCommon     []string `json:"most_common_emojis,omitempty"`
	Style          string   `json:"emoji_style"`
}

type StructureStats struct {
	SingleWordRatio      float64 `json:"single_word_ratio"`
	ShortMessageRatio    float64 `json:"short_message_ratio"`
	LongMessageRatio     float64 `json:"long_message_ratio"`
	PrefersShortMessages bool    `json:"prefers_short_messages"`
}

type EmotionStats struct {
	PositiveIndicators int     `json:"positive_indicators"`
	NegativeIndicators int     `json:"negative_indicators"`
	EnthusiasmLevel    float64 `json:"enthusiasm_level"`
	Style              string  `json:"emotional_style"`
}

type LanguageStats struct {
	UniqueWords        int     `json:"unique_words"`
	VocabularyRichness float64 `json:"vocabulary_richness"`
	UsesAbbreviations  bool    `json:"uses_abbreviations"`
	UsesSlang          bool    `json:"uses_slang"`
}

var (
	allCapsWord  = regexp.MustCompile(`\b[A-Z]{2,}\b`)
	wordPattern  = regexp.MustCompile(`\b\w+\b`)
	abbreviation = regexp.MustCompile(`\b(lol|omg|btw|tbh|nvm|idk|imo|fyi|asap|ttyl|brb|smh|irl|dm|rn|af|fr|ngl)\b`)
	slangWord    = regexp.MustCompile(`\b(gonna|wanna|gotta|kinda|sorta|yeah|yep|nah|sup|hey|yo|dude|bro|bestie|lowkey|highkey|facts|bet)\b`)
	positiveWord = regexp.MustCompile(`\b(good|great|awesome|cool|nice|love|like|happy|fun|yes|yeah)\b`)
	negativeWord = regexp.MustCompile(`\b(bad|hate|no|nah|sucks|terrible|awful|annoying|sad|mad)\b`)
)

// AnalyzeStyle builds a style profile from the device owner's side of a
// recent-interactions document. Returns a zero-count profile when the window
// holds no owner messages.
func AnalyzeStyle(doc RecentInteractionsDocument) StyleProfile {
	var userMsgs []string
	for _, m := range doc.Messages {
		if m.Sender == SenderSelf && m.Content != "" {
			userMsgs = append(userMsgs, m.Content)
		}
	}

	var p StyleProfile
	if len(userMsgs) == 0 {
		return p
	}
	n := float64(len(userMsgs))

	p.BasicStats = basicStats(userMsgs)
	p.Capitalization = capitalizationStats(userMsgs, n)
	p.Punctuation = punctuationStats(userMsgs, n)
	p.Emoji = emojiStats(userMsgs, n)
	p.Structure = structureStats(userMsgs, n)
	p.Language = languageStats(userMsgs)
	p.Emotional = emotionStats(userMsgs, n)
	p.Examples = representativeExamples(userMsgs)
	p.Recommendations = styleRecommendations(p)
	return p
}

func basicStats(msgs []string) StyleBasicStats {
	s := StyleBasicStats{
		MessageCount:    len(msgs),
		ShortestMessage: len(msgs[0]),
	}
	var totalChars, totalWords int
	for _, m := range msgs {
		totalChars += len(m)
		totalWords += len(strings.Fields(m))
		if len(m) < s.ShortestMessage {
			s.ShortestMessage = len(m)
		}
		if len(m) > s.LongestMessage {
			s.LongestMessage = len(m)
		}
	}
	s.AverageLength = round2(float64(totalChars) / float64(len(msgs)))
	s.AverageWords = round2(float64(totalWords) / float64(len(msgs)))
	s.TotalWords = totalWords
	return s
}

func capitalizationStats(msgs []string, n float64) CapitalizationStats {
	var startsCapital, allCaps int
	for _, m := range msgs {
		r := []rune(m)
		if len(r) > 0 && r[0] >= 'A' && r[0] <= 'Z' {
			startsCapital++
		}
		if allCapsWord.MatchString(m) {
			allCaps++
		}
	}
	ratio := round2(float64(startsCapital) / n)
	return CapitalizationStats{
		StartsCapitalRatio: ratio,
		UsesAllCaps:        allCaps > 0,
		Style:              ratioStyle(ratio, "consistent", "frequent", "occasional", "rare"),
	}
}

func punctuationStats(msgs []string, n float64) PunctuationStats {
	var s PunctuationStats
	var endsWithPunct int
	for _, m := range msgs {
		s.Periods += strings.Count(m, ".")
		s.Exclamations += strings.Count(m, "!")
		s.Questions += strings.Count(m, "?")
		if strings.Contains(m, "...") {
			s.UsesEllipsis = true
		}
		if m != "" && strings.ContainsRune(".!?", rune(m[len(m)-1])) {
			endsWithPunct++
		}
	}
	s.EndsWithPunctuationRatio = round2(float64(endsWithPunct) / n)

	switch {
	case s.Periods+s.Exclamations+s.Questions == 0:
		s.Style = "minimal"
	case s.Exclamations > s.Periods:
		s.Style = "expressive"
	case s.Periods > s.Exclamations:
		s.Style = "formal"
	default:
		s.Style = "balanced"
	}
	return s
}

func emojiStats(msgs []string, n float64) EmojiStats {
	var s EmojiStats
	var withEmoji int
	counts := make(map[string]int)
	var order []string

	for _, m := range msgs {
		found := gomoji.FindAll(m)
		if len(found) == 0 {
			continue
		}
		withEmoji++
		s.TotalEmojis += len(found)
		for _, e := range found {
			if _, seen := counts[e.Character]; !seen {
				order = append(order, e.Character)
			}
			counts[e.Character]++
		}
	}

	s.UsesEmojis = withEmoji > 0
	s.EmojiFrequency = round2(float64(withEmoji) / n)

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > 5 {
		order = order[:5]
	}
	s.MostCommon = order

	ratio := float64(withEmoji) / n
	switch {
	case ratio > 0.5:
		s.Style = "frequent"
	case ratio > 0.2:
		s.Style = "moderate"
	case ratio > 0:
		s.Style = "occasional"
	default:
		s.Style = "none"
	}
	return s
}

func structureStats(msgs []string, n float64) StructureStats {
	var single, short, long int
	for _, m := range msgs {
		words := len(strings.Fields(m))
		if words == 1 {
			single++
		}
		if words <= 3 {
			short++
		}
		if words > 10 {
			long++
		}
	}
	return StructureStats{
		SingleWordRatio:      round2(float64(single) / n),
		ShortMessageRatio:    round2(float64(short) / n),
		LongMessageRatio:     round2(float64(long) / n),
		PrefersShortMessages: short > long,
	}
}

func languageStats(msgs []string) LanguageStats {
	allText := strings.ToLower(strings.Join(msgs, " "))
	words := wordPattern.FindAllString(allText, -1)

	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}

	s := LanguageStats{
		UniqueWords:       len(unique),
		UsesAbbreviations: abbreviation.MatchString(allText),
		UsesSlang:         slangWord.MatchString(allText),
	}
	if len(words) > 0 {
		s.VocabularyRichness = round2(float64(len(unique)) / float64(len(words)))
	}
	return s
}

func emotionStats(msgs []string, n float64) EmotionStats {
	allText := strings.ToLower(strings.Join(msgs, " "))
	s := EmotionStats{
		PositiveIndicators: len(positiveWord.FindAllString(allText, -1)),
		NegativeIndicators: len(negativeWord.FindAllString(allText, -1)),
	}

	var enthusiasm int
	for _, m := range msgs {
		lower := strings.ToLower(m)
		if strings.Contains(m, "!") || strings.Contains(lower, "excited") || strings.Contains(lower, "amazing") {
			enthusiasm++
		}
	}
	s.EnthusiasmLevel = round2(float64(enthusiasm) / n)

	switch {
	case float64(enthusiasm) > n*0.3:
		s.Style = "enthusiastic"
	case s.PositiveIndicators > s.NegativeIndicators*2:
		s.Style = "positive"
	case s.NegativeIndicators > s.PositiveIndicators*2:
		s.Style = "direct"
	default:
		s.Style = "balanced"
	}
	return s
}

// representativeExamples picks a length spread plus the most recent messages,
// capped at five distinct examples.
func representativeExamples(msgs []string) []string {
	if len(msgs) <= 5 {
		return append([]string(nil), msgs...)
	}

	byLength := append([]string(nil), msgs...)
	sort.SliceStable(byLength, func(i, j int) bool {
		return len(byLength[i]) < len(byLength[j])
	})

	candidates := []string{
		byLength[len(byLength)/4],
		byLength[len(byLength)/2],
		byLength[3*len(byLength)/4],
		msgs[len(msgs)-2],
		msgs[len(msgs)-1],
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, 5)
	for _, c := range candidates {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func styleRecommendations(p StyleProfile) []string {
	var recs []string

	if p.BasicStats.AverageLength < 20 {
		recs = append(recs, "Keep messages short and concise")
	} else if p.BasicStats.AverageLength > 100 {
		recs = append(recs, "User tends to write longer, more detailed messages")
	}

	switch p.Capitalization.Style {
	case "rare":
		recs = append(recs, "Use minimal capitalization, even at sentence starts")
	case "consistent":
		recs = append(recs, "Always capitalize sentence starts properly")
	}

	switch p.Punctuation.Style {
	case "minimal":
		recs = append(recs, "Avoid ending punctuation on most messages")
	case "expressive":
		recs = append(recs, "Use exclamation points for enthusiasm")
	}

	switch p.Emoji.Style {
	case "frequent":
		recs = append(recs, "Include emojis regularly to match user's style")
	case "none":
		recs = append(recs, "Avoid using emojis")
	}

	if p.Language.UsesAbbreviations {
		recs = append(recs, "Use common text abbreviations like 'lol' and 'btw'")
	}
	if p.Language.UsesSlang {
		recs = append(recs, "Include casual slang and informal language")
	}
	return recs
}

func ratioStyle(ratio float64, high, mid, low, rare string) string {
	switch {
	case ratio > 0.8:
		return high
	case ratio > 0.5:
		return mid
	case ratio > 0.2:
		return low
	default:
		return rare
	}
}
