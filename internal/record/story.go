package record

// FeedType distinguishes syndicated feeds from plain web pages.
// The distinction matters downstream: web-page stories get crawl-time
// publish dates and guids, which are excluded from comparison.
type FeedType string

const (
	FeedSyndicated FeedType = "syndicated"
	FeedWebPage    FeedType = "web_page"
)

// Field names shared by the store, the normalizers, and the comparator.
const (
	KeyStoriesID      = "stories_id"
	KeySentencesID    = "story_sentences_id"
	KeyURL            = "url"
	KeyTitle          = "title"
	KeyDescription    = "description"
	KeyPublishDate    = "publish_date"
	KeyGUID           = "guid"
	KeyFeedType       = "feed_type"
	KeyContent        = "content"
	KeyExtractedText  = "extracted_text"
	KeyTags           = "tags"
	KeyTag            = "tag"
	KeyTagSet         = "tag_set"
	KeySentences      = "sentences"
	KeySentence       = "sentence"
	KeySentenceNumber = "sentence_number"
	KeyTimezone       = "timezone"
)

// SQLDateLayout is the timestamp layout used for publish dates in storage
// and fixtures.
const SQLDateLayout = "2006-01-02 15:04:05"

// Story is one crawled article with its derived content.
// StoriesID is assigned by storage and is not stable across runs; the
// normalized url key is the only cross-run identity. PublishDate and GUID
// are nil for fields the crawl did not produce, never empty strings.
type Story struct {
	StoriesID     int64
	URL           string
	Title         string
	Description   string
	PublishDate   *string
	GUID          *string
	FeedType      FeedType
	Content       string
	ExtractedText string
	Tags          []Tag
	Sentences     []Sentence
}

// Sentence is one segment of a story's extracted text.
// Order by SentenceNumber is semantically significant.
type Sentence struct {
	SentencesID    int64
	StoriesID      int64
	SentenceNumber int64
	Sentence       string
	PublishDate    *string
}

// Tag is a label in a namespaced tag set. Tag order is insignificant;
// only the per-set count is compared.
type Tag struct {
	Tag    string
	TagSet string
}

// Record lowers a typed story into the generic Value tree that fixtures
// persist and the normalizers walk. Absent optionals are omitted, not
// written as empty strings. The run-local story id appears both at the
// top level and inside every sentence object.
func (s *Story) Record() Object {
	obj := Object{
		KeyStoriesID:     Int(s.StoriesID),
		KeyURL:           String(s.URL),
		KeyTitle:         String(s.Title),
		KeyDescription:   String(s.Description),
		KeyFeedType:      String(s.FeedType),
		KeyContent:       String(s.Content),
		KeyExtractedText: String(s.ExtractedText),
	}
	if s.PublishDate != nil {
		obj[KeyPublishDate] = String(*s.PublishDate)
	}
	if s.GUID != nil {
		obj[KeyGUID] = String(*s.GUID)
	}

	tags := make(List, len(s.Tags))
	for i, t := range s.Tags {
		tags[i] = Object{
			KeyTag:    String(t.Tag),
			KeyTagSet: String(t.TagSet),
		}
	}
	obj[KeyTags] = tags

	sentences := make(List, len(s.Sentences))
	for i, sen := range s.Sentences {
		so := Object{
			KeySentencesID:    Int(sen.SentencesID),
			KeyStoriesID:      Int(sen.StoriesID),
			KeySentenceNumber: Int(sen.SentenceNumber),
			KeySentence:       String(sen.Sentence),
		}
		if sen.PublishDate != nil {
			so[KeyPublishDate] = String(*sen.PublishDate)
		}
		sentences[i] = so
	}
	obj[KeySentences] = sentences

	return obj
}

// Dataset lowers a sequence of stories into the Value form.
func Dataset(stories []*Story) List {
	out := make(List, len(stories))
	for i, s := range stories {
		out[i] = s.Record()
	}
	return out
}
