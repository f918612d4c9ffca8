// SPDX-License-Identifier: MIT

// Package epg models the XMLTV guide document and the records it is built from.
package epg

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// SourceInfoName is the value of the root source-info-name attribute.
const SourceInfoName = "None"

// Header is written before the guide element.
const Header = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// maxXMLSize bounds Decode input.
const maxXMLSize = 50 * 1024 * 1024

type TV struct {
	XMLName        xml.Name    `xml:"tv"`
	SourceInfoName string      `xml:"source-info-name,attr"`
	Channels       []Channel   `xml:"channel"`
	Programmes     []Programme `xml:"programme"`
}

type Channel struct {
	ID          string `xml:"id,attr"`
	DisplayName string `xml:"display-name"`
	LCN         string `xml:"lcn"`
	Icon        Icon   `xml:"icon"`
}

type Icon struct {
	Src string `xml:"src,attr"`
}

type Programme struct {
	Start   string `xml:"start,attr"`
	Stop    string `xml:"stop,attr"`
	Channel string `xml:"channel,attr"`
	Title   string `xml:"title"`
	Desc    string `xml:"desc"`
	Icon    Icon   `xml:"icon"`
}

// Encode writes tv as an indented XMLTV document including the XML header.
func Encode(w io.Writer, tv *TV) error {
	if _, err := io.WriteString(w, Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	if err := enc.Encode(tv); err != nil {
		return fmt.Errorf("encode xmltv: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode xmltv: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// ErrNoGuide is returned by Decode when the input holds no tv element.
var ErrNoGuide = errors.New("xmltv: no tv element")

// Decode reads an XMLTV document. Input is size limited and entity
// expansion is disabled.
func Decode(r io.Reader) (*TV, error) {
	var doc TV
	dec := xml.NewDecoder(io.LimitReader(r, maxXMLSize))
	dec.Strict = true
	dec.Entity = make(map[string]string)

	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			err = ErrNoGuide
		}
		return nil, fmt.Errorf("decode xmltv: %w", err)
	}
	return &doc, nil
}
