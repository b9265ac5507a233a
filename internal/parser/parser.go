// Package parser scans venue depth and top-of-book payloads directly out of
// a session's receive buffer, feeding deltas straight into the book without
// building an intermediate tree of generic values.
package parser

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"

	"hftmaker/internal/book"
	"hftmaker/pkg/types"
)

// ParseDepth reads a depth-update payload (top-level "ts" plus
// "data":{"b":[[px,qty],...],"a":[[px,qty],...]}) out of buf and applies
// every delta straight to dst. Malformed price/qty strings parse as 0 and
// are filtered by the price > 0 check, matching the venue's own leniency.
func ParseDepth(buf []byte, dst *book.Book) (ts uint64, err error) {
	dec := json.NewDecoder(bytes.NewReader(buf))

	if _, err := expectObjectOpen(dec); err != nil {
		return 0, err
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return ts, err
		}
		key, _ := keyTok.(string)

		switch key {
		case "ts":
			var v uint64
			if err := dec.Decode(&v); err != nil {
				return ts, err
			}
			ts = v
		case "data":
			if err := parseData(dec, dst); err != nil {
				return ts, err
			}
		default:
			if err := skipValue(dec); err != nil {
				return ts, err
			}
		}
	}
	return ts, nil
}

func parseData(dec *json.Decoder, dst *book.Book) error {
	if _, err := expectObjectOpen(dec); err != nil {
		return err
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		switch key {
		case "b":
			if err := parseSide(dec, types.Buy, dst); err != nil {
				return err
			}
		case "a":
			if err := parseSide(dec, types.Sell, dst); err != nil {
				return err
			}
		default:
			if err := skipValue(dec); err != nil {
				return err
			}
		}
	}
	// consume closing brace of the data object
	_, err := dec.Token()
	return err
}

func parseSide(dec *json.Decoder, side types.Side, dst *book.Book) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return skipValueAfterToken(tok, dec)
	}

	for dec.More() {
		priceStr, qtyStr, err := readPair(dec)
		if err != nil {
			return err
		}
		price := lenientFloat(priceStr)
		qty := lenientFloat(qtyStr)
		if price > 0 {
			dst.Update(side, price, qty)
		}
	}
	_, err = dec.Token() // closing ']'
	return err
}

func readPair(dec *json.Decoder) (price, qty string, err error) {
	tok, err := dec.Token()
	if err != nil {
		return "", "", err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return "", "", io.ErrUnexpectedEOF
	}

	var vals [2]string
	for i := 0; i < 2 && dec.More(); i++ {
		var s string
		if err := dec.Decode(&s); err != nil {
			return "", "", err
		}
		vals[i] = s
	}
	// drain any extra elements defensively
	for dec.More() {
		if err := skipValue(dec); err != nil {
			return "", "", err
		}
	}
	if _, err := dec.Token(); err != nil { // closing ']'
		return "", "", err
	}
	return vals[0], vals[1], nil
}

// ParseTopOfBook reads a reference-feed top-of-book payload
// ({"b":"<px>","a":"<px>"}) and returns the bid/ask prices directly.
func ParseTopOfBook(buf []byte) (bid, ask float64, err error) {
	var msg struct {
		B string `json:"b"`
		A string `json:"a"`
	}
	if err := json.Unmarshal(buf, &msg); err != nil {
		return 0, 0, err
	}
	return lenientFloat(msg.B), lenientFloat(msg.A), nil
}

func lenientFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func expectObjectOpen(dec *json.Decoder) (json.Token, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return tok, io.ErrUnexpectedEOF
	}
	return tok, nil
}

func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	return skipValueAfterToken(tok, dec)
}

func skipValueAfterToken(tok json.Token, dec *json.Decoder) error {
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil // scalar, already consumed
	}
	depth := 1
	for depth > 0 {
		t, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := t.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	_ = delim
	return nil
}
