package czimd

import "testing"

const fullXML = `<ImageDocument><Metadata>
<Experiment Version="1.1"><ExperimentBlocks/></Experiment>
<HardwareSetting Name="LSM"/>
<CustomAttributes><Tag>x</Tag></CustomAttributes>
<DisplaySetting><Channels><Channel><ShortName>DAPI</ShortName></Channel></Channels></DisplaySetting>
<Layers><Layer Name="Annotations"/></Layers>
<Information>
  <Instrument><Microscopes><Microscope Id="Microscope:1" Name="Axio"/></Microscopes></Instrument>
  <Image><SizeS>0</SizeS><Dimensions><Channels><Channel/></Channels><S/></Dimensions></Image>
</Information>
</Metadata></ImageDocument>`

func TestPresenceChecks(t *testing.T) {
	full, err := ParseString(fullXML)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	empty, err := ParseString("<ImageDocument/>")
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}

	checks := []struct {
		name string
		fn   func(*Document) bool
	}{
		{"HasChannels", (*Document).HasChannels},
		{"HasDisplaySettings", (*Document).HasDisplaySettings},
		{"HasExperiment", (*Document).HasExperiment},
		{"HasHardware", (*Document).HasHardware},
		{"HasCustomAttributes", (*Document).HasCustomAttributes},
		{"HasLayers", (*Document).HasLayers},
		{"HasInstrument", (*Document).HasInstrument},
	}
	for _, c := range checks {
		if !c.fn(full) {
			t.Errorf("%s() on full document = false, want true", c.name)
		}
		if c.fn(empty) {
			t.Errorf("%s() on empty document = true, want false", c.name)
		}
	}
}

func TestDocumentAccessors(t *testing.T) {
	doc, err := ParseString(fullXML)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}

	if n, ok := doc.SizeS(); !ok || n != 0 {
		t.Errorf("SizeS() = %d, %v, want 0, true", n, ok)
	}
	if got := len(doc.Channels()); got != 1 {
		t.Errorf("len(Channels()) = %d, want 1", got)
	}
	if got := len(doc.DisplayChannels()); got != 1 {
		t.Errorf("len(DisplayChannels()) = %d, want 1", got)
	}
	if got := len(doc.Scenes()); got != 0 {
		t.Errorf("len(Scenes()) = %d, want 0", got)
	}

	var nilDoc *Document
	if nilDoc.HasChannels() || nilDoc.Metadata() != nil {
		t.Error("nil document should report absence")
	}
	if _, ok := nilDoc.SizeS(); ok {
		t.Error("SizeS() on nil document should report false")
	}
}
