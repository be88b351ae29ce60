// Package format implements the lexical layer of the FITS on-disk format:
// 80-byte card images, 2880-byte block arithmetic, quoted-string escaping,
// and the TFORM column type grammar.
//
// The package deals in raw text and bytes only. Typed interpretation of card
// values belongs to the caller; format never decides whether "123" is an
// integer or part of a string.
package format

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// FITS structural constants. Every FITS file is a sequence of 2880-byte
// blocks; header blocks hold 36 card images of 80 bytes each.
const (
	BlockSize     = 2880
	CardSize      = 80
	CardsPerBlock = BlockSize / CardSize
	KeyWidth      = 8

	// fixedValueEnd is the column (1-based, per the standard's fixed format)
	// at which right-justified non-string values end.
	fixedValueEnd = 30
)

// Card is one 80-byte header record in lexical form. Text is the raw value
// field with quotes intact. HasValue reports whether the "= " value
// indicator was present; commentary cards (COMMENT, HISTORY, blank keyword)
// carry their text in Text with HasValue false.
type Card struct {
	Key      string
	Text     string
	Comment  string
	HasValue bool
}

// End is the lexical END card that terminates every header.
var End = Card{Key: "END"}

// ParseCard splits one 80-byte card image into key, raw value text, and
// comment. The value/comment split is quote-aware: a '/' inside a quoted
// string does not start a comment.
func ParseCard(rec []byte) (Card, error) {
	if len(rec) != CardSize {
		return Card{}, fmt.Errorf("card image is %d bytes, want %d", len(rec), CardSize)
	}

	key := strings.TrimRight(string(rec[:KeyWidth]), " ")

	// The standard is strict about the value indicator position.
	if rec[KeyWidth] != '=' || rec[KeyWidth+1] != ' ' {
		return Card{
			Key:  key,
			Text: strings.TrimRight(string(rec[KeyWidth:]), " "),
		}, nil
	}

	text, comment := splitValue(string(rec[KeyWidth+2:]))

	return Card{Key: key, Text: text, Comment: comment, HasValue: true}, nil
}

// splitValue separates the raw value token from the trailing comment.
func splitValue(s string) (text, comment string) {
	i := 0
	for i < len(s) && s[i] == ' ' {
		i++
	}

	if i < len(s) && s[i] == '\'' {
		// Quoted string: scan past doubled quotes to the closing quote.
		j := i + 1
		for j < len(s) {
			if s[j] != '\'' {
				j++
				continue
			}

			if j+1 < len(s) && s[j+1] == '\'' {
				j += 2
				continue
			}

			j++

			break
		}

		text = s[i:j]

		if k := strings.IndexByte(s[j:], '/'); k != -1 {
			comment = strings.TrimSpace(s[j+k+1:])
		}

		return text, comment
	}

	if k := strings.IndexByte(s, '/'); k != -1 {
		return strings.TrimSpace(s[:k]), strings.TrimSpace(s[k+1:])
	}

	return strings.TrimSpace(s), ""
}

// RenderCard formats a card as an 80-byte image. Non-string values are
// right-justified to column 30 (fixed format) when they fit; strings are
// left-justified after the value indicator. Comments are truncated to fit
// the card; an oversized key or value is an error.
func RenderCard(c Card) ([]byte, error) {
	if len(c.Key) > KeyWidth {
		return nil, fmt.Errorf("key %q longer than %d characters", c.Key, KeyWidth)
	}

	buf := bytes.Repeat([]byte{' '}, CardSize)
	copy(buf, c.Key)

	if !c.HasValue {
		if len(c.Text) > CardSize-KeyWidth {
			return nil, fmt.Errorf("commentary text for %q does not fit a card", c.Key)
		}

		copy(buf[KeyWidth:], c.Text)

		return buf, nil
	}

	buf[KeyWidth] = '='
	pos := KeyWidth + 2

	val := c.Text
	if len(val) > CardSize-pos {
		return nil, fmt.Errorf("value for %q does not fit a card", c.Key)
	}

	if len(val) > 0 && val[0] != '\'' && pos+len(val) < fixedValueEnd {
		pos = fixedValueEnd - len(val)
	}

	copy(buf[pos:], val)
	pos += len(val)

	if c.Comment != "" && pos+4 < CardSize {
		copy(buf[pos:], " / ")
		copy(buf[pos+3:], c.Comment) // copy stops at the card boundary
	}

	return buf, nil
}

// Quote encodes s as a FITS quoted string: single quotes doubled, padded to
// the standard's 8-character minimum body.
func Quote(s string) string {
	body := strings.ReplaceAll(s, "'", "''")
	if len(body) < KeyWidth {
		body += strings.Repeat(" ", KeyWidth-len(body))
	}

	return "'" + body + "'"
}

// Unquote decodes a FITS quoted string. Doubled quotes collapse to one;
// trailing spaces inside the quotes are not significant and are dropped.
func Unquote(s string) (string, error) {
	var buf strings.Builder

	// Three states: before the opening quote, inside the string, and just
	// after a quote character (which may be the terminator or half of a
	// doubled quote).
	state := 0
	for _, ch := range s {
		quote := ch == '\''

		switch state {
		case 0:
			if !quote {
				return "", errors.New("string does not start with a quote")
			}

			state = 1
		case 1:
			if quote {
				state = 2
			} else {
				buf.WriteRune(ch)
			}
		case 2:
			if quote {
				buf.WriteRune(ch)
				state = 1
			} else {
				return strings.TrimRight(buf.String(), " "), nil
			}
		}
	}

	if state != 2 {
		return "", errors.New("unterminated string")
	}

	return strings.TrimRight(buf.String(), " "), nil
}

// Blocks returns the number of 2880-byte blocks needed to hold n bytes.
func Blocks(n int64) int64 {
	return (n + BlockSize - 1) / BlockSize
}

// PadBlock extends b with fill bytes to the next block boundary. Headers pad
// with spaces, data units with zero bytes.
func PadBlock(b []byte, fill byte) []byte {
	rem := len(b) % BlockSize
	if rem == 0 {
		return b
	}

	pad := bytes.Repeat([]byte{fill}, BlockSize-rem)

	return append(b, pad...)
}
