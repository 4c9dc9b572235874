package domain

// TaggedData is one object with its tags
type TaggedData struct {
	Tags []string
	Data Object
}

// Checksum is a content digest of a TaggedData item
type Checksum string

// Collection is a content asset holding tagged data
type Collection struct {
	Path      string
	Items     []TaggedData
	Checksums []Checksum
}

// NewCollection creates an empty collection at path
func NewCollection(path string) *Collection {
	return &Collection{Path: path}
}

// Reset drops all items and checksums
func (c *Collection) Reset() {
	c.Items = nil
	c.Checksums = nil
}

// Add appends item with its checksum
func (c *Collection) Add(item TaggedData, sum Checksum) {
	c.Items = append(c.Items, item)
	c.Checksums = append(c.Checksums, sum)
}

// Source describes who owns data being uploaded
type Source struct {
	// Name is used in node names
	Name string
	// Path is the asset reference written to unreal_object_path
	Path string
	// IsActor suppresses the object path attribute
	IsActor bool
}
