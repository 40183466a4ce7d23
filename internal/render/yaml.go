package render

import (
	"encoding/base64"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/kisielk/ogtree"
)

// YAML tags used for placeholders.
const (
	TagYAMLGlobal    = "!global"
	TagYAMLPersid    = "!persid"
	TagYAMLReduce    = "!reduce"
	TagYAMLConstruct = "!construct"
)

func renderYAML(w io.Writer, v ogtree.Value) error {
	node, err := ToYAML(v)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return err
	}
	return enc.Close()
}

// ToYAML converts v to a YAML node tree.
//
// Lists become block sequences and tuples flow sequences. Bytes that are
// not valid UTF-8 are emitted as !!binary.
func ToYAML(v ogtree.Value) (*yaml.Node, error) {
	w := &walker{}
	return w.yaml(v)
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func (w *walker) yaml(x ogtree.Value) (*yaml.Node, error) {
	switch x := x.(type) {
	case nil, ogtree.None:
		return scalar("!!null", "null"), nil

	case ogtree.Bool:
		return scalar("!!bool", strconv.FormatBool(bool(x))), nil

	case ogtree.Int:
		return scalar("!!int", x.String()), nil

	case ogtree.Float:
		return scalar("!!float", yamlFloat(float64(x))), nil

	case ogtree.Bytes:
		if utf8.ValidString(string(x)) {
			return scalar("!!str", string(x)), nil
		}
		return scalar("!!binary", base64.StdEncoding.EncodeToString([]byte(x))), nil

	case *ogtree.Sequence:
		if err := w.enter(x); err != nil {
			return nil, err
		}
		defer w.leave(x)
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		if x.Tuple {
			node.Style = yaml.FlowStyle
		}
		for _, item := range x.Items {
			n, err := w.yaml(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, n)
		}
		return node, nil

	case *ogtree.Mapping:
		if err := w.enter(x); err != nil {
			return nil, err
		}
		defer w.leave(x)
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for k, v := range x.Iter() {
			kn, err := w.yaml(k)
			if err != nil {
				return nil, err
			}
			vn, err := w.yaml(v)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, kn, vn)
		}
		return node, nil

	case ogtree.Global:
		return w.tagged(TagYAMLGlobal, "module", x.Module, "name", x.Name)

	case ogtree.PersistentID:
		return w.tagged(TagYAMLPersid, "id", x.ID)

	case *ogtree.Reduce:
		if err := w.enter(x); err != nil {
			return nil, err
		}
		defer w.leave(x)
		kv := []any{"callable", x.Callable, "arg", x.Arg}
		if x.State != nil {
			kv = append(kv, "state", x.State)
		}
		return w.tagged(TagYAMLReduce, kv...)

	case *ogtree.Construct:
		if err := w.enter(x); err != nil {
			return nil, err
		}
		defer w.leave(x)
		kv := []any{"class", x.Class}
		if x.Args != nil {
			kv = append(kv, "args", x.Args)
		}
		if x.State != nil {
			kv = append(kv, "state", x.State)
		}
		return w.tagged(TagYAMLConstruct, kv...)
	}
	panic("unreachable")
}

// tagged returns mapping node with custom tag; kv is name, value pairs.
func (w *walker) tagged(tag string, kv ...any) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: tag}
	for i := 0; i < len(kv); i += 2 {
		v, _ := kv[i+1].(ogtree.Value)
		vn, err := w.yaml(v)
		if err != nil {
			return nil, err
		}
		node.Content = append(node.Content, scalar("!!str", kv[i].(string)), vn)
	}
	return node, nil
}

func yamlFloat(f float64) string {
	switch {
	case math.IsInf(f, +1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	case math.IsNaN(f):
		return ".nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
