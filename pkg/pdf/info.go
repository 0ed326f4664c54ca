package pdf

import (
	"bufio"
	"bytes"
	"errors"
	"html"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// InfoEntry is one key/value pair of update_info data
type InfoEntry struct {
	Key   string
	Value string
}

// ErrNoInfo is returned by ParseInfo when the data has no InfoKey entries
var ErrNoInfo = errors.New("no Info entries found")

// ParseInfo reads InfoKey/InfoValue pairs in dump_data syntax. Values are
// NFC UTF-8 when utf8 is set, and ASCII with XML character references
// otherwise. Other report records are skipped.
func ParseInfo(data []byte, utf8 bool) ([]InfoEntry, error) {
	var entries []InfoEntry
	var key string
	haveKey := false

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "InfoBegin" {
			haveKey = false
			continue
		}
		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimPrefix(value, " ")
		if utf8 {
			value = norm.NFC.String(value)
		} else {
			value = html.UnescapeString(value)
		}

		switch strings.TrimSpace(field) {
		case "InfoKey":
			key, haveKey = value, true
		case "InfoValue":
			if haveKey {
				entries = append(entries, InfoEntry{Key: key, Value: value})
				haveKey = false
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNoInfo
	}
	return entries, nil
}

// UpdateInfo applies entries to the information dictionary. An empty value
// removes the key.
func (d *Document) UpdateInfo(entries []InfoEntry) {
	info := Dictionary{}
	if cur := d.Info(); cur != nil {
		info = cur.Clone()
	}
	for _, e := range entries {
		if e.Value == "" {
			info.Delete(e.Key)
			continue
		}
		info.Set(e.Key, TextString(e.Value))
	}
	d.SetInfo(info)
}

// StampProducer records the producing tool and the modification time in the
// information dictionary
func (d *Document) StampProducer(creator, producer string, now time.Time) {
	info := Dictionary{}
	if cur := d.Info(); cur != nil {
		info = cur.Clone()
	}
	if creator != "" {
		info["Creator"] = TextString(creator)
	}
	if producer != "" {
		info["Producer"] = TextString(producer)
	}
	date := String{Value: []byte(pdfDate(now))}
	if info.Get("CreationDate") == nil {
		info["CreationDate"] = date
	}
	info["ModDate"] = date
	d.SetInfo(info)
}
