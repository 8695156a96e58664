package powerflow

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// networkFile is the YAML layout of a network case:
//
//	id: ieee14
//	baseMVA: 100
//	buses:
//	  - id: Bus1
//	    type: swing
//	    vSpec: 1.06
//	  - id: Bus2
//	    type: pv
//	    vSpec: 1.045
//	    genP: 0.4
//	    loadP: 0.217
//	    loadQ: 0.127
//	branches:
//	  - {from: Bus1, to: Bus2, circuit: 1, r: 0.01938, x: 0.05917, b: 0.0528}
type networkFile struct {
	ID       string         `yaml:"id"`
	BaseMVA  float64        `yaml:"baseMVA"`
	Buses    []busRecord    `yaml:"buses"`
	Branches []branchRecord `yaml:"branches"`
}

type busRecord struct {
	ID     string  `yaml:"id"`
	Number int     `yaml:"number,omitempty"`
	Name   string  `yaml:"name,omitempty"`
	Type   string  `yaml:"type,omitempty"`
	Active *bool   `yaml:"active,omitempty"`
	LoadP  float64 `yaml:"loadP,omitempty"`
	LoadQ  float64 `yaml:"loadQ,omitempty"`
	GenP   float64 `yaml:"genP,omitempty"`
	GenQ   float64 `yaml:"genQ,omitempty"`
	VSpec  float64 `yaml:"vSpec,omitempty"`
	ShuntG float64 `yaml:"shuntG,omitempty"`
	ShuntB float64 `yaml:"shuntB,omitempty"`
}

type branchRecord struct {
	From    string  `yaml:"from"`
	To      string  `yaml:"to"`
	Circuit int     `yaml:"circuit,omitempty"`
	R       float64 `yaml:"r"`
	X       float64 `yaml:"x"`
	B       float64 `yaml:"b,omitempty"`
	Ratio   float64 `yaml:"ratio,omitempty"`
	Active  *bool   `yaml:"active,omitempty"`
}

// LoadNetworkFile reads a network case from a YAML file
func LoadNetworkFile(filename string) (*Network, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open network file %s: %w", filename, err)
	}
	defer file.Close()

	net, err := ReadNetwork(file)
	if err != nil {
		return nil, fmt.Errorf("network file %s: %w", filename, err)
	}
	return net, nil
}

// ReadNetwork decodes a YAML network case
func ReadNetwork(r io.Reader) (*Network, error) {
	var nf networkFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&nf); err != nil {
		return nil, fmt.Errorf("failed to decode network: %w", err)
	}

	if nf.BaseMVA == 0 {
		nf.BaseMVA = 100
	}
	net := NewNetwork(nf.ID, nf.BaseMVA)

	for i, rec := range nf.Buses {
		busType, err := parseBusType(rec.Type)
		if err != nil {
			return nil, fmt.Errorf("bus %d (%s): %w", i+1, rec.ID, err)
		}
		vSpec := rec.VSpec
		if vSpec == 0 {
			vSpec = 1.0
		}
		bus := &Bus{
			ID:     rec.ID,
			Number: rec.Number,
			Name:   rec.Name,
			Type:   busType,
			Active: rec.Active == nil || *rec.Active,
			LoadP:  rec.LoadP,
			LoadQ:  rec.LoadQ,
			GenP:   rec.GenP,
			GenQ:   rec.GenQ,
			VSpec:  vSpec,
			VMag:   vSpec,
			ShuntG: rec.ShuntG,
			ShuntB: rec.ShuntB,
		}
		if bus.Number == 0 {
			bus.Number = i + 1
		}
		if err := net.AddBus(bus); err != nil {
			return nil, err
		}
	}

	for i, rec := range nf.Branches {
		if rec.R == 0 && rec.X == 0 {
			return nil, fmt.Errorf("branch %d (%s->%s): zero impedance", i+1, rec.From, rec.To)
		}
		branch := &Branch{
			From:    rec.From,
			To:      rec.To,
			Circuit: rec.Circuit,
			R:       rec.R,
			X:       rec.X,
			B:       rec.B,
			Ratio:   rec.Ratio,
			Active:  rec.Active == nil || *rec.Active,
		}
		if err := net.AddBranch(branch); err != nil {
			return nil, fmt.Errorf("branch %d: %w", i+1, err)
		}
	}

	return net, nil
}

// WriteNetwork encodes a network case as YAML
func WriteNetwork(w io.Writer, net *Network) error {
	nf := networkFile{ID: net.ID, BaseMVA: net.BaseMVA}
	for _, b := range net.Buses() {
		rec := busRecord{
			ID: b.ID, Number: b.Number, Name: b.Name, Type: b.Type.String(),
			LoadP: b.LoadP, LoadQ: b.LoadQ, GenP: b.GenP, GenQ: b.GenQ,
			VSpec: b.VSpec, ShuntG: b.ShuntG, ShuntB: b.ShuntB,
		}
		if !b.Active {
			rec.Active = boolPtr(false)
		}
		nf.Buses = append(nf.Buses, rec)
	}
	for _, br := range net.Branches() {
		rec := branchRecord{
			From: br.From, To: br.To, Circuit: br.Circuit,
			R: br.R, X: br.X, B: br.B, Ratio: br.Ratio,
		}
		if !br.Active {
			rec.Active = boolPtr(false)
		}
		nf.Branches = append(nf.Branches, rec)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&nf); err != nil {
		return fmt.Errorf("failed to encode network %s: %w", net.ID, err)
	}
	return enc.Close()
}

func parseBusType(s string) (BusType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pq", "load":
		return PQBus, nil
	case "pv", "gen":
		return PVBus, nil
	case "swing", "slack":
		return SwingBus, nil
	default:
		return PQBus, fmt.Errorf("invalid bus type: %s (expected pq, pv or swing)", s)
	}
}

func boolPtr(b bool) *bool {
	return &b
}
