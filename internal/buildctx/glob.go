package buildctx

// Pattern tokens. A run of two or more stars collapses into one doubleStar
// at tokenize time, so "a***b" and "a**b" match identically.
type tokenKind int

const (
	tokenChar tokenKind = iota
	tokenStar            // any run of non-separator characters
	tokenDoubleStar      // any run, separators included
	tokenQm              // any single non-separator character
)

type token struct {
	kind tokenKind
	ch   rune
}

func tokenize(pattern string) []token {
	var tokens []token
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				for i+1 < len(runes) && runes[i+1] == '*' {
					i++
				}
				tokens = append(tokens, token{kind: tokenDoubleStar})
			} else {
				tokens = append(tokens, token{kind: tokenStar})
			}
		case '?':
			tokens = append(tokens, token{kind: tokenQm})
		default:
			tokens = append(tokens, token{kind: tokenChar, ch: runes[i]})
		}
	}
	return tokens
}

const (
	memoUnset int8 = iota
	memoTrue
	memoFalse
)

// globMatch reports whether tokens match the whole text. Matching recurses
// over (token index, rune index) with a memo table, so each pair is decided
// once and total cost stays at O(len(tokens) * len(text)).
func globMatch(tokens []token, text string) bool {
	runes := []rune(text)
	memo := make([][]int8, len(tokens)+1)
	for i := range memo {
		memo[i] = make([]int8, len(runes)+1)
	}
	return matchFrom(tokens, runes, 0, 0, memo)
}

func matchFrom(tokens []token, text []rune, ti, si int, memo [][]int8) bool {
	if memo[ti][si] != memoUnset {
		return memo[ti][si] == memoTrue
	}
	var result bool
	if ti == len(tokens) {
		result = si == len(text)
	} else {
		switch tok := tokens[ti]; tok.kind {
		case tokenChar:
			result = si < len(text) && text[si] == tok.ch &&
				matchFrom(tokens, text, ti+1, si+1, memo)
		case tokenQm:
			result = si < len(text) && text[si] != '/' &&
				matchFrom(tokens, text, ti+1, si+1, memo)
		case tokenStar:
			result = matchFrom(tokens, text, ti+1, si, memo)
			for idx := si; !result && idx < len(text) && text[idx] != '/'; idx++ {
				result = matchFrom(tokens, text, ti+1, idx+1, memo)
			}
		case tokenDoubleStar:
			result = matchFrom(tokens, text, ti+1, si, memo)
			// "a/**/b" covers zero directories: the separator after the
			// doubleStar may be skipped along with it.
			if !result && ti+1 < len(tokens) && tokens[ti+1].kind == tokenChar && tokens[ti+1].ch == '/' {
				result = matchFrom(tokens, text, ti+2, si, memo)
			}
			for idx := si; !result && idx < len(text); idx++ {
				result = matchFrom(tokens, text, ti+1, idx+1, memo)
			}
		}
	}
	if result {
		memo[ti][si] = memoTrue
	} else {
		memo[ti][si] = memoFalse
	}
	return result
}
