package dspace

// MetadataEntry is one key/value metadata field, consumed verbatim by DSpace.
type MetadataEntry struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Language string `json:"language,omitempty"`
}

// CheckSum is the digest DSpace records for a stored bitstream.
type CheckSum struct {
	Value             string `json:"value"`
	CheckSumAlgorithm string `json:"checkSumAlgorithm"`
}

// Bitstream is the plan for one binary payload. FileLocation is the source
// URI; UUID and CheckSum are assigned by DSpace after a successful post.
type Bitstream struct {
	Name         string
	Description  string
	FileLocation string

	UUID     string
	CheckSum CheckSum
}

// Item is the plan for one repository item. UUID, Handle and LastModified are
// assigned by DSpace after a successful post.
type Item struct {
	Metadata   []MetadataEntry
	Bitstreams []*Bitstream

	UUID         string
	Handle       string
	LastModified string
}

// itemResponse is the DSpace REST response for an item POST
type itemResponse struct {
	UUID         string `json:"uuid"`
	Handle       string `json:"handle"`
	LastModified string `json:"lastModified"`
}

// bitstreamResponse is the DSpace REST response for a bitstream POST
type bitstreamResponse struct {
	UUID     string   `json:"uuid"`
	Name     string   `json:"name"`
	CheckSum CheckSum `json:"checkSum"`
}

// collectionResponse is the DSpace REST response for a handle lookup
type collectionResponse struct {
	UUID string `json:"uuid"`
}
