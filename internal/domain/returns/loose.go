package returns

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// fieldKind is the JSON shape a canonical field expects
type fieldKind int

const (
	kindString fieldKind = iota
	kindDecimal
	kindBool
	kindTime
)

var (
	decimalType = reflect.TypeOf(decimal.Decimal{})
	timeType    = reflect.TypeOf(time.Time{})
)

// fieldKinds maps the JSON names of a struct's fields, embedded ones included,
// to the shape each expects. Fields of other kinds are left out.
func fieldKinds(t reflect.Type) map[string]fieldKind {
	kinds := make(map[string]fieldKind)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			for k, v := range fieldKinds(f.Type) {
				kinds[k] = v
			}
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		switch {
		case f.Type == decimalType:
			kinds[name] = kindDecimal
		case f.Type == timeType:
			kinds[name] = kindTime
		case f.Type.Kind() == reflect.String:
			kinds[name] = kindString
		case f.Type.Kind() == reflect.Bool:
			kinds[name] = kindBool
		}
	}
	return kinds
}

var (
	recordKinds = sync.OnceValue(func() map[string]fieldKind { return fieldKinds(reflect.TypeOf(ReturnRecord{})) })
	itemKinds   = sync.OnceValue(func() map[string]fieldKind { return fieldKinds(reflect.TypeOf(NCRItem{})) })
	headerKinds = map[string]fieldKind{
		"id": kindString, "ncrNo": kindString, "date": kindString, "founder": kindString,
		"refNo": kindString, "documentNo": kindString, "createdAt": kindTime, "updatedAt": kindTime,
	}
)

// parseObject reads raw as a JSON object, keeping numbers verbatim
func parseObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// coerceFields rewrites values of doc into the shape kinds expects. Values
// that cannot be read as that shape are dropped so the field decodes as zero.
func coerceFields(doc map[string]any, kinds map[string]fieldKind) {
	for key, v := range doc {
		kind, ok := kinds[key]
		if !ok {
			continue
		}
		if out, ok := coerce(v, kind); ok {
			doc[key] = out
		} else {
			delete(doc, key)
		}
	}
}

func coerce(v any, kind fieldKind) (any, bool) {
	switch kind {
	case kindDecimal:
		switch x := v.(type) {
		case json.Number:
			return x, true
		case string:
			s := strings.ReplaceAll(strings.TrimSpace(x), ",", "")
			if _, err := decimal.NewFromString(s); err != nil {
				return nil, false
			}
			return s, true
		}
	case kindBool:
		switch x := v.(type) {
		case bool:
			return x, true
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(x))
			return b, err == nil
		case json.Number:
			f, err := x.Float64()
			return f != 0, err == nil
		}
	case kindString:
		switch x := v.(type) {
		case string:
			return x, true
		case json.Number:
			return x.String(), true
		case bool:
			return strconv.FormatBool(x), true
		}
	case kindTime:
		if s, ok := v.(string); ok {
			if _, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return s, true
			}
		}
	}
	return nil, false
}

// StoredRef is what can still be read from a stored document that failed to decode
type StoredRef struct {
	ID    string
	NCRNo string
}

// ReadStoredRef recovers the id and the NCR number of a stored document.
// key names the field that carries the number; both are empty when raw is not an object.
func ReadStoredRef(id string, raw []byte, key string) StoredRef {
	ref := StoredRef{ID: id}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ref
	}
	if s, ok := doc[key].(string); ok {
		ref.NCRNo = s
	}
	return ref
}
