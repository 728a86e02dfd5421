// =============================================================================
// ODS Sync - Canonical Schema
// =============================================================================
//
// This module defines the canonical vocabulary of a service order (ODS):
//   - The catalog of canonical fields and their declared types
//   - The dictionary that maps normalized spreadsheet headers to those fields
//   - The composite match key used to locate a record's row in the workbook
//
// The catalog is static and versioned. Spreadsheet header text is written by
// people, in Spanish, with inconsistent casing, spacing and accents; headers
// are therefore normalized before dictionary lookup so that "Código  Servicio"
// and "codigo servicio" resolve to the same canonical field.
//
// =============================================================================

package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Version identifies the schema revision carried by this build.
const Version = "2026.1"

// Record is a flat canonical-field -> value mapping for one service order.
type Record map[string]any

// FieldType declares how a canonical field is typed in the remote table.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeDate   FieldType = "date"
	TypeBool   FieldType = "bool"
)

// Well-known canonical fields referenced by name elsewhere in the engine.
const (
	FieldID          = "id"
	FieldYear        = "año_servicio"
	FieldYearASCII   = "ano_servicio"
	FieldMonth       = "mes_servicio"
	FieldCode        = "codigo_servicio"
	FieldReference   = "referencia_servicio"
	FieldDescription = "descripcion_servicio"
	FieldHours       = "horas_interprete"
	FieldClausulada  = "orden_clausulada"
)

// Fields is the versioned catalog of canonical fields.
var Fields = map[string]FieldType{
	"id":                   TypeString,
	"nombre_profesional":   TypeString,
	"codigo_servicio":      TypeString,
	"nombre_empresa":       TypeString,
	"nit_empresa":          TypeString,
	"caja_compensacion":    TypeString,
	"fecha_servicio":       TypeDate,
	"referencia_servicio":  TypeString,
	"descripcion_servicio": TypeString,
	"nombre_usuario":       TypeString,
	"cedula_usuario":       TypeString,
	"discapacidad_usuario": TypeString,
	"fecha_ingreso":        TypeDate,
	"valor_virtual":        TypeNumber,
	"valor_bogota":         TypeNumber,
	"valor_otro":           TypeNumber,
	"todas_modalidades":    TypeString,
	"horas_interprete":     TypeNumber,
	"valor_interprete":     TypeNumber,
	"valor_total":          TypeNumber,
	"observaciones":        TypeString,
	"asesor_empresa":       TypeString,
	"sede_empresa":         TypeString,
	"modalidad_servicio":   TypeString,
	"observacion_agencia":  TypeString,
	"orden_clausulada":     TypeBool,
	"año_servicio":         TypeNumber,
	"mes_servicio":         TypeNumber,
	"genero_usuario":       TypeString,
	"tipo_contrato":        TypeString,
	"seguimiento_servicio": TypeString,
	"cargo_servicio":       TypeString,
	"total_personas":       TypeNumber,
}

// headerFields maps a normalized row-1 header to its canonical field.
// Headers not present here belong to the end users and are left alone.
var headerFields = map[string]string{
	"id":                           "id",
	"profesional":                  "nombre_profesional",
	"nuevo codigo":                 "codigo_servicio",
	"empresa":                      "nombre_empresa",
	"nit":                          "nit_empresa",
	"ccf":                          "caja_compensacion",
	"fecha":                        "fecha_servicio",
	"referencia":                   "referencia_servicio",
	"nombre":                       "descripcion_servicio",
	"oferentes":                    "nombre_usuario",
	"cedula":                       "cedula_usuario",
	"tipo de discapacidad":         "discapacidad_usuario",
	"fecha ingreso":                "fecha_ingreso",
	"valor servicio virtual":       "valor_virtual",
	"valor servicio bogota":        "valor_bogota",
	"valor fuera de bogota":        "valor_otro",
	"todas las modalidades":        "todas_modalidades",
	"total horas":                  "horas_interprete",
	"valor a pagar":                "valor_interprete",
	"total valor servicio sin iva": "valor_total",
	"observaciones":                "observaciones",
	"asesor":                       "asesor_empresa",
	"sede":                         "sede_empresa",
	"modalidad":                    "modalidad_servicio",
	"observacion agencia":          "observacion_agencia",
	"clausulada":                   "orden_clausulada",
	"ano":                          "año_servicio",
	"mes":                          "mes_servicio",
	"genero":                       "genero_usuario",
	"tipo de contrato":             "tipo_contrato",
	"seguimiento":                  "seguimiento_servicio",
	"cargo":                        "cargo_servicio",
	"personas":                     "total_personas",
}

// MatchKeys is the composite key used to locate a record's row when the
// identity column is absent or stale. Comparisons are trimmed-string on both
// sides, so numeric drift between a cell and a record value never mismatches.
var MatchKeys = []string{
	"id",
	"fecha_servicio",
	"codigo_servicio",
	"nit_empresa",
	"nombre_profesional",
}

// stripAccents removes combining marks after NFD decomposition, so that
// "año" normalizes to "ano" and "Código" to "codigo".
var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize converts raw header text to its dictionary form: lowercase,
// whitespace collapsed to single spaces, diacritics stripped.
func Normalize(header string) string {
	clean := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(header))), " ")
	folded, _, err := transform.String(stripAccents, clean)
	if err != nil {
		return clean
	}
	return folded
}

// FieldFor resolves a normalized header to its canonical field.
func FieldFor(normalized string) (string, bool) {
	field, ok := headerFields[normalized]
	return field, ok
}

// Coerce renders any record or cell value as a trimmed string for
// composite-key comparison. Integral floats print without a decimal part so
// that the number 2026 and the cell text "2026" compare equal.
func Coerce(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format("2006-01-02")
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// Float extracts a numeric value, tolerating the string/number drift typical
// of manually edited cells. Unparseable values count as zero.
func Float(v any) float64 {
	switch val := v.(type) {
	case nil:
		return 0
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case string:
		clean := strings.TrimSpace(strings.ReplaceAll(val, ",", "."))
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Int extracts an integer value with the same tolerance as Float.
func Int(v any) int {
	return int(Float(v))
}

// Year returns the service year of a record, accepting both the accented and
// the ASCII spelling of the field.
func (r Record) Year() int {
	for _, key := range []string{FieldYear, FieldYearASCII} {
		if v, ok := r[key]; ok && Coerce(v) != "" {
			return Int(v)
		}
	}
	return 0
}

// Month returns the service month of a record, or zero.
func (r Record) Month() int {
	return Int(r[FieldMonth])
}

// IsClausulada reports whether the record's order type is "clausulada".
// Manually edited cells hold "Sí"/"Si"/"No"; remote rows may hold booleans.
func (r Record) IsClausulada() bool {
	orden := strings.ToLower(Coerce(r[FieldClausulada]))
	return strings.HasPrefix(orden, "s") || orden == "true"
}
