package model

import "encoding/xml"

// DublinCoreMetadata is the <metadata> block of the OPF package
// document. Only the elements the builder emits are modelled.
type DublinCoreMetadata struct {
	XMLName xml.Name `xml:"metadata"`

	Titles      []DCTitle      `xml:"dc:title"`
	Identifiers []DCIdentifier `xml:"dc:identifier"`
	Languages   []DCLanguage   `xml:"dc:language"`

	Creators     []DCCreator     `xml:"dc:creator"`
	Descriptions []DCDescription `xml:"dc:description"`
	Subjects     []DCSubject     `xml:"dc:subject"`
	Sources      []DCSource      `xml:"dc:source"`

	Metas []DublinCoreMeta `xml:"meta"`
}

func (d *DublinCoreMetadata) Marshal() (string, error) {
	xmlBytes, err := xml.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(xmlBytes), nil
}

type DCTitle struct {
	Value string `xml:",chardata"`
	ID    string `xml:"id,attr,omitempty"`
	Lang  string `xml:"xml:lang,attr,omitempty"`
}

type DCIdentifier struct {
	Value  string `xml:",chardata"`
	ID     string `xml:"id,attr,omitempty"`
	Scheme string `xml:"opf:scheme,attr,omitempty"`
}

type DCLanguage struct {
	Value string `xml:",chardata"`
}

type DCCreator struct {
	Value  string `xml:",chardata"`
	ID     string `xml:"id,attr,omitempty"`
	Role   string `xml:"opf:role,attr,omitempty"`
	FileAs string `xml:"opf:file-as,attr,omitempty"`
}

type DCDescription struct {
	Value string `xml:",chardata"`
	Lang  string `xml:"xml:lang,attr,omitempty"`
}

type DCSubject struct {
	Value string `xml:",chardata"`
	Lang  string `xml:"xml:lang,attr,omitempty"`
}

type DCSource struct {
	Value string `xml:",chardata"`
}

// DublinCoreMeta is the EPUB3 <meta> extension element.
type DublinCoreMeta struct {
	Name     string `xml:"name,attr,omitempty"`
	Content  string `xml:"content,attr,omitempty"`
	Value    string `xml:",chardata"`
	Property string `xml:"property,attr,omitempty"`
}

type Manifest struct {
	XMLName xml.Name       `xml:"manifest"`
	Items   []ManifestItem `xml:"item"`
}

func (m *Manifest) Marshal() (string, error) {
	xmlBytes, err := xml.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(xmlBytes), nil
}

type ManifestItem struct {
	ID         string `xml:"id,attr"`
	Link       string `xml:"href,attr"`
	Media      string `xml:"media-type,attr,omitempty"`
	Properties string `xml:"properties,attr,omitempty"`
}

type Spine struct {
	XMLName xml.Name    `xml:"spine"`
	Toc     string      `xml:"toc,attr,omitempty"`
	Items   []SpineItem `xml:"itemref"`
}

func (s *Spine) Marshal() (string, error) {
	xmlBytes, err := xml.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(xmlBytes), nil
}

type SpineItem struct {
	IDref string `xml:"idref,attr"`
}
