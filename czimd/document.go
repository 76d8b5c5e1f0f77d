// Package czimd holds the raw CZI metadata document and its accessor.
//
// A Document is the XML metadata of a CZI file parsed into a generic Node
// tree. Every accessor is presence-checked: absent sub-trees come back as
// nil nodes and absent or malformed scalar fields as (zero, false), never
// as a panic. Documents are read-only once loaded and may be shared by
// concurrent readers.
package czimd

import (
	"bytes"
	"io"
)

// Document is a loaded CZI metadata document.
type Document struct {
	// Root is the ImageDocument element.
	Root *Node
	// Source is the identifier the document was loaded from (a file path or
	// an s3:// URL). Empty for documents parsed from memory.
	Source string
	// Container is true when Source is a CZI container rather than a bare
	// XML document, so pixel types and plane records can be read from it.
	Container bool
}

// NewDocument parses an XML metadata document read from r.
// source is recorded for collaborators that need to reopen the container.
func NewDocument(r io.Reader, source string) (*Document, error) {
	root, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return &Document{Root: root, Source: source}, nil
}

// ParseString parses an XML metadata document held in a string.
func ParseString(xml string) (*Document, error) {
	return NewDocument(bytes.NewReader([]byte(xml)), "")
}

// Metadata returns ImageDocument/Metadata.
func (d *Document) Metadata() *Node {
	if d == nil {
		return nil
	}
	return d.Root.Child("Metadata")
}

// Information returns Metadata/Information.
func (d *Document) Information() *Node {
	return d.Metadata().Child("Information")
}

// Image returns Metadata/Information/Image.
func (d *Document) Image() *Node {
	return d.Information().Child("Image")
}

// Dimensions returns Metadata/Information/Image/Dimensions.
func (d *Document) Dimensions() *Node {
	return d.Image().Child("Dimensions")
}

// Channels returns the channel entries of the dimension metadata.
func (d *Document) Channels() []*Node {
	return d.Dimensions().Path("Channels").All("Channel")
}

// DisplayChannels returns the channel entries of the display settings.
func (d *Document) DisplayChannels() []*Node {
	return d.DisplaySetting().Path("Channels").All("Channel")
}

// Scenes returns the scene entries of the S dimension.
func (d *Document) Scenes() []*Node {
	return d.Dimensions().Path("S", "Scenes").All("Scene")
}

// Instrument returns Metadata/Information/Instrument.
func (d *Document) Instrument() *Node {
	return d.Information().Child("Instrument")
}

// Experiment returns Metadata/Experiment.
func (d *Document) Experiment() *Node {
	return d.Metadata().Child("Experiment")
}

// HardwareSetting returns Metadata/HardwareSetting.
func (d *Document) HardwareSetting() *Node {
	return d.Metadata().Child("HardwareSetting")
}

// CustomAttributes returns Metadata/CustomAttributes.
func (d *Document) CustomAttributes() *Node {
	return d.Metadata().Child("CustomAttributes")
}

// DisplaySetting returns Metadata/DisplaySetting.
func (d *Document) DisplaySetting() *Node {
	return d.Metadata().Child("DisplaySetting")
}

// Layers returns Metadata/Layers.
func (d *Document) Layers() *Node {
	return d.Metadata().Child("Layers")
}

// HasChannels reports whether the dimension metadata lists channels.
func (d *Document) HasChannels() bool {
	return d.Dimensions().Child("Channels") != nil
}

// HasDisplaySettings reports whether display settings are present.
func (d *Document) HasDisplaySettings() bool {
	return d.DisplaySetting() != nil
}

// HasExperiment reports whether an experiment block is present.
func (d *Document) HasExperiment() bool {
	return d.Experiment() != nil
}

// HasHardware reports whether a hardware setting block is present.
func (d *Document) HasHardware() bool {
	return d.HardwareSetting() != nil
}

// HasCustomAttributes reports whether custom attributes are present.
func (d *Document) HasCustomAttributes() bool {
	return d.CustomAttributes() != nil
}

// HasLayers reports whether a layers block is present.
func (d *Document) HasLayers() bool {
	return d.Layers() != nil
}

// HasInstrument reports whether instrument information is present.
func (d *Document) HasInstrument() bool {
	return d.Instrument() != nil
}

// SizeS returns the declared number of scenes. ok is false when SizeS is
// absent or not an integer.
func (d *Document) SizeS() (n int, ok bool) {
	return d.Image().IntField("SizeS")
}
