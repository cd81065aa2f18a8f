// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package report emits a structured XML snapshot of the emulator's live
// state, grounded on the teacher's DFXML forensic report writer
// (pkg/dfxml): same root-element-plus-streamed-records shape, repointed
// from "files carved out of an image" to "drives currently hooked onto
// INT 13h".
package report

import (
	"encoding/xml"
	"io"

	"github.com/nettboot/sanboot13/internal/drive"
	"github.com/nettboot/sanboot13/internal/xbft"
	"github.com/nettboot/sanboot13/pkg/dfxml"
)

const xmlOutputVersion = "1.0"

var metadata = dfxml.Metadata{
	Xmlns:    "http://www.forensicswiki.org/wiki/Category:Digital_Forensics_XML",
	XmlnsXsi: "http://www.w3.org/2001/XMLSchema-instance",
	XmlnsDC:  "http://purl.org/dc/elements/1.1/",
	Type:     "SAN Boot Emulator State Report",
}

// Header is the root element: xBFT pool occupancy plus the same
// metadata/creator shape the teacher's forensic report header carried.
type Header struct {
	XMLName   xml.Name      `xml:"sanbootreport"`
	XmlOutput string        `xml:"xmloutputversion,attr,omitempty"`
	Metadata  dfxml.Metadata `xml:"metadata"`
	Creator   dfxml.Creator `xml:"creator"`
	XBFT      XBFTUsage     `xml:"xbft"`
}

// XBFTUsage describes the xBFT low-memory pool's occupancy at report
// time.
type XBFTUsage struct {
	Used     uint16 `xml:"used"`
	Capacity int    `xml:"capacity"`
}

// DriveRecord is one registered EmulatedDrive, flattened for reporting.
type DriveRecord struct {
	XMLName        xml.Name `xml:"drive"`
	DriveNumber    string   `xml:"drive_number,attr"`
	NaturalDrive   string   `xml:"natural_drive,attr"`
	Kind           string   `xml:"kind"`
	Cylinders      uint16   `xml:"geometry>cylinders"`
	Heads          uint8    `xml:"geometry>heads"`
	SectorsPerTrack uint8   `xml:"geometry>sectors_per_track"`
	HasBootCatalog bool     `xml:"has_boot_catalog"`
	BootCatalogLBA uint32   `xml:"boot_catalog_lba,omitempty"`
	LastStatus     uint8    `xml:"last_status"`
}

func driveNumberHex(n uint8) string { return hexByte(n) }

func hexByte(n uint8) string {
	const digits = "0123456789ABCDEF"
	return "0x" + string(digits[n>>4]) + string(digits[n&0x0F])
}

// toRecord flattens an EmulatedDrive into its reporting shape.
func toRecord(d *drive.EmulatedDrive) DriveRecord {
	rec := DriveRecord{
		DriveNumber:     driveNumberHex(d.DriveNumber),
		NaturalDrive:    driveNumberHex(d.NaturalDrive),
		Kind:            d.Kind.String(),
		Cylinders:       d.Geometry.Cylinders,
		Heads:           d.Geometry.Heads,
		SectorsPerTrack: d.Geometry.SectorsPerTrack,
		HasBootCatalog:  d.HasBootCatalog,
		LastStatus:      d.LastStatus,
	}
	if d.HasBootCatalog {
		rec.BootCatalogLBA = d.BootCatalogLBA
	}
	return rec
}

// Writer streams a report document, one drive record at a time: a
// WriteHeader/WriteDrive-per-item/Close sequence, the same shape the
// teacher's forensic report writer used for its header/fileobject/close
// sequence.
type Writer struct {
	w   io.Writer
	enc *xml.Encoder
}

// NewWriter builds a report Writer over w.
func NewWriter(w io.Writer) *Writer {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return &Writer{w: w, enc: enc}
}

// WriteHeader writes the XML declaration and the opening <sanbootreport>
// tag, along with creator metadata and xBFT pool occupancy.
func (w *Writer) WriteHeader(pool *xbft.Pool) error {
	if _, err := w.w.Write([]byte(xml.Header)); err != nil {
		return err
	}

	hdr := Header{
		XmlOutput: xmlOutputVersion,
		Metadata:  metadata,
		Creator: dfxml.Creator{
			Package:              "sanboot13",
			Version:              "1.0",
			ExecutionEnvironment: dfxml.GetExecEnv(),
		},
	}
	if pool != nil {
		hdr.XBFT = XBFTUsage{Used: pool.Used(), Capacity: xbft.PoolSize}
	}

	start := xml.StartElement{
		Name: xml.Name{Local: "sanbootreport"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmloutputversion"}, Value: hdr.XmlOutput}},
	}
	if err := w.enc.EncodeToken(start); err != nil {
		return err
	}

	children := []struct {
		v    interface{}
		name string
	}{{hdr.Metadata, "metadata"}, {hdr.Creator, "creator"}, {hdr.XBFT, "xbft"}}
	for _, c := range children {
		if err := w.enc.EncodeElement(c.v, xml.StartElement{Name: xml.Name{Local: c.name}}); err != nil {
			return err
		}
	}
	return nil
}

// WriteDrive encodes one drive record.
func (w *Writer) WriteDrive(d *drive.EmulatedDrive) error {
	return w.enc.Encode(toRecord(d))
}

// Close writes the closing </sanbootreport> tag and flushes the encoder.
func (w *Writer) Close() error {
	if err := w.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "sanbootreport"}}); err != nil {
		return err
	}
	return w.enc.Flush()
}

// Snapshot writes a complete report of st's current drive table and xBFT
// pool occupancy to w in one call.
func Snapshot(w io.Writer, st *drive.State, pool *xbft.Pool) error {
	rw := NewWriter(w)
	if err := rw.WriteHeader(pool); err != nil {
		return err
	}
	for _, d := range st.Drives() {
		if err := rw.WriteDrive(d); err != nil {
			return err
		}
	}
	return rw.Close()
}
