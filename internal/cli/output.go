package cli

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/BradenHooton/csm/internal/models"
)

// Output renders a response the way the command asks for
type Output struct {
	cmd  *Command
	resp *Response
}

func NewOutput(cmd *Command, resp *Response) *Output {
	return &Output{cmd: cmd, resp: resp}
}

// errorBody reads the key and message of an error response
func (o *Output) errorBody() (key, message string) {
	body, _ := o.resp.Data.(map[string]any)
	key, _ = body["error"].(string)
	message, _ = body["message"].(string)
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", o.resp.Status)
	}
	return key, message
}

func (o *Output) standardOutput() string {
	if o.cmd.Name == CmdAlerts && o.cmd.Action == "acknowledge" {
		return fmt.Sprintf("Alert with id %s has been acknowledged.", o.cmd.arg(0))
	}
	return ""
}

func (o *Output) errorOutput(key, message string) string {
	if o.cmd.Name == CmdAlerts && o.cmd.Action == "acknowledge" {
		return fmt.Sprintf("Alert with id %s wasn't acknowledged. Error: %s. Error code: %d.", o.cmd.arg(0), message, o.resp.Status)
	}
	if key != "" {
		return fmt.Sprintf("Error: %s (%s)", message, key)
	}
	return "Error: " + message
}

// Dump writes the response to out, or the error to errw. A failed call is
// also returned as an error.
func (o *Output) Dump(out, errw io.Writer) error {
	if !o.resp.OK() {
		key, message := o.errorBody()
		fmt.Fprintln(errw, o.errorOutput(key, message))
		if key == "" {
			key = models.KeyInvalidResponse
		}
		return &models.CsmError{Kind: kindForStatus(o.resp.Status), Key: key, Message: message}
	}

	if s := o.standardOutput(); s != "" {
		_, err := fmt.Fprintln(out, s)
		return err
	}
	if body, ok := o.resp.Data.(map[string]any); ok && len(body) == 1 {
		if msg, ok := body["message"].(string); ok {
			_, err := fmt.Fprintln(out, msg)
			return err
		}
	}

	switch o.cmd.Format() {
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "    ")
		return enc.Encode(o.resp.Data)
	case FormatXML:
		return writeXML(out, o.cmd.Name, o.resp.Data)
	}
	return o.writeTable(out)
}

func kindForStatus(status int) error {
	switch {
	case status == 404:
		return models.ErrNotFound
	case status == 401:
		return models.ErrUnauthorized
	case status == 403:
		return models.ErrForbidden
	case status == 503:
		return models.ErrServiceUnavailable
	case status >= 400 && status < 500:
		return models.ErrInvalidRequest
	}
	return models.ErrInternal
}

// rows selects the records to tabulate: the filter key's list, or the
// body itself as a single record
func (o *Output) rows() []any {
	data := o.resp.Data
	if o.cmd.filter != "" {
		if body, ok := data.(map[string]any); ok {
			data = body[o.cmd.filter]
		}
	}
	if list, ok := data.([]any); ok {
		return list
	}
	if data == nil {
		return nil
	}
	return []any{data}
}

func (o *Output) writeTable(out io.Writer) error {
	rows := o.rows()
	columns := o.cmd.headers

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if len(columns) == 0 {
		// plain values such as audit log lines, one per line
		for _, row := range rows {
			fmt.Fprintln(tw, cell(row))
		}
		return tw.Flush()
	}

	titles := make([]string, len(columns))
	for i, c := range columns {
		titles[i] = c.Title
	}
	fmt.Fprintln(tw, strings.Join(titles, "\t"))

	for _, row := range rows {
		record, _ := row.(map[string]any)
		values := make([]string, len(columns))
		for i, c := range columns {
			values[i] = cell(record[c.Field])
		}
		fmt.Fprintln(tw, strings.Join(values, "\t"))
	}
	return tw.Flush()
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = cell(item)
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		encoded, _ := json.Marshal(t)
		return string(encoded)
	}
	return fmt.Sprint(v)
}

// writeXML encodes a decoded JSON document. Object keys become elements in
// sorted order and list items are wrapped in <item>.
func writeXML(out io.Writer, root string, data any) error {
	enc := xml.NewEncoder(out)
	enc.Indent("", "    ")
	if err := encodeXMLValue(enc, root, data); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(out)
	return err
}

func encodeXMLValue(enc *xml.Encoder, name string, v any) error {
	start := xml.StartElement{Name: xml.Name{Local: name}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}

	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := encodeXMLValue(enc, k, t[k]); err != nil {
				return err
			}
		}
	case []any:
		for _, item := range t {
			if err := encodeXMLValue(enc, "item", item); err != nil {
				return err
			}
		}
	case nil:
	default:
		if err := enc.EncodeToken(xml.CharData(fmt.Sprint(t))); err != nil {
			return err
		}
	}

	return enc.EncodeToken(start.End())
}
