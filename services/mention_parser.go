package services

import (
	"strings"
	"unicode"
)

// parseResult, mesaj içeriğinden tek geçişte çıkarılan ham adaylar.
//
// Parser yalnızca sözdizimi tanır — adayların gerçek kullanıcı/rol/kanal
// olup olmadığı service katmanında DB'ye karşı çözülür. Çözülemeyen aday
// sessizce düz metin kalır.
type parseResult struct {
	EveryoneRequested bool
	UserCandidates    []string // @isim
	ChannelCandidates []string // #kanal-adi
	InviteCodes       []string // .../invite/<code>
	CustomEmojis      []string // :isim:serverId:emojiId: → "isim:serverId:emojiId"
}

// parseContent, içeriği soldan sağa tek geçişte tarar.
//
// Tanınan formlar:
//   - @everyone           → everyone bayrağı (yetki kontrolü caller'da)
//   - @<isim>             → kullanıcı veya rol adayı
//   - #<kanal-adi>        → kanal linki adayı
//   - :isim:serverId:emojiId: → custom emoji referansı
//   - http(s)://..../invite/<code> → davet kodu
//
// Kod bloğu/escape desteği yoktur — düz metin protokolü.
func parseContent(content string) parseResult {
	var result parseResult
	seen := map[string]bool{}

	runes := []rune(content)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '@':
			if !atWordBoundary(runes, i) {
				continue
			}
			name, consumed := readToken(runes[i+1:], isMentionChar)
			if consumed == 0 {
				continue
			}
			i += consumed
			if name == "everyone" {
				result.EveryoneRequested = true
				continue
			}
			key := "@" + strings.ToLower(name)
			if !seen[key] {
				seen[key] = true
				result.UserCandidates = append(result.UserCandidates, name)
			}

		case '#':
			if !atWordBoundary(runes, i) {
				continue
			}
			name, consumed := readToken(runes[i+1:], isChannelRefChar)
			if consumed == 0 {
				continue
			}
			i += consumed
			key := "#" + strings.ToLower(name)
			if !seen[key] {
				seen[key] = true
				result.ChannelCandidates = append(result.ChannelCandidates, name)
			}

		case ':':
			// :isim:serverId:emojiId:
			if ref, consumed := readCustomEmoji(runes[i:]); ref != "" {
				i += consumed - 1
				key := "emoji:" + strings.ToLower(ref)
				if !seen[key] {
					seen[key] = true
					result.CustomEmojis = append(result.CustomEmojis, ref)
				}
			}

		case 'h':
			// http(s)://.../invite/<code>
			rest := string(runes[i:])
			if !strings.HasPrefix(rest, "http://") && !strings.HasPrefix(rest, "https://") {
				continue
			}
			if code, consumed := readInviteCode(rest); code != "" {
				i += consumed - 1
				key := "inv:" + code
				if !seen[key] {
					seen[key] = true
					result.InviteCodes = append(result.InviteCodes, code)
				}
			}
		}
	}
	return result
}

// atWordBoundary: önceki karakter harf/rakam ise mention başlamaz
// ("mail@host" bir mention değildir).
func atWordBoundary(runes []rune, i int) bool {
	if i == 0 {
		return true
	}
	prev := runes[i-1]
	return !unicode.IsLetter(prev) && !unicode.IsDigit(prev)
}

// readToken, valid fonksiyonunu sağlayan en uzun run'ı okur.
func readToken(runes []rune, valid func(rune) bool) (string, int) {
	n := 0
	for n < len(runes) && valid(runes[n]) {
		n++
	}
	return string(runes[:n]), n
}

func isMentionChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) ||
		ch == '_' || ch == '-' || ch == '.'
}

func isChannelRefChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) ||
		ch == '-' || ch == '_'
}

// readCustomEmoji, runes[0]==':' varsayımıyla :isim:serverId:emojiId:
// formunu okur. Dört ayraç kolonun tamamı bulunamazsa eşleşme yoktur —
// düz metindeki tek ':' tüketilmez.
func readCustomEmoji(runes []rune) (string, int) {
	segments := make([]string, 0, 3)
	pos := 1 // açılış ':' atlanır
	for len(segments) < 3 {
		seg, consumed := readToken(runes[pos:], isEmojiRefChar)
		if consumed == 0 {
			return "", 0
		}
		pos += consumed
		if pos >= len(runes) || runes[pos] != ':' {
			return "", 0
		}
		segments = append(segments, seg)
		if len(segments) < 3 {
			pos++ // ara ':' — kapanış kolonu son segmentten sonra kalır
		}
	}
	return strings.Join(segments, ":"), pos + 1
}

func isEmojiRefChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) ||
		ch == '_' || ch == '-'
}

// readInviteCode, URL'in tamamını tüketip /invite/<code> path'i varsa
// kodu döner. URL whitespace'e kadar okunur.
func readInviteCode(s string) (string, int) {
	end := len(s)
	for i, ch := range s {
		if unicode.IsSpace(ch) {
			end = i
			break
		}
	}
	url := s[:end]

	const marker = "/invite/"
	idx := strings.Index(url, marker)
	if idx < 0 {
		return "", end
	}
	code := url[idx+len(marker):]
	// Kod path'in son segmentidir; trailing noktalama temizlenir.
	code = strings.TrimRight(code, ".,;:!?)")
	if i := strings.IndexAny(code, "/?#"); i >= 0 {
		code = code[:i]
	}
	if code == "" {
		return "", end
	}
	return code, end
}
