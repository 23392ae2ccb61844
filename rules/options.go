package rules

import "strings"

// FilterOption is the bitmask that describes a request: its resource type and,
// optionally, whether it is a third-party or a first-party request.  The same
// type is used for the resource-type modifiers of a rule.
type FilterOption uint32

// NoFilterOption means that the caller knows nothing about the request.
const NoFilterOption FilterOption = 0

// FilterOption enumeration.
const (
	// TypeScript (javascript, etc) $script
	TypeScript FilterOption = 1 << iota
	// TypeImage (any image) $image
	TypeImage
	// TypeStylesheet (css) $stylesheet
	TypeStylesheet
	// TypeObject (flash, etc) $object
	TypeObject
	// TypeXMLHTTPRequest (ajax/fetch) $xmlhttprequest
	TypeXMLHTTPRequest
	// TypeObjectSubrequest (requests made by plugins) $object-subrequest
	TypeObjectSubrequest
	// TypeSubdocument (iframe) $subdocument
	TypeSubdocument
	// TypeDocument (main frame) $document
	TypeDocument
	// TypeOther - any other request type $other
	TypeOther
	// TypePing (navigator.sendBeacon() or ping attribute on links) $ping
	TypePing
	// TypeFont (any custom font) $font
	TypeFont
	// TypeMedia (video/music) $media
	TypeMedia
	// TypeWebsocket (a websocket connection) $websocket
	TypeWebsocket
	// TypeWebRTC (RTCPeerConnection) $webrtc
	TypeWebRTC
	// TypePopup (a new window) $popup
	TypePopup

	// FlagThirdParty tells that the request is a third-party one.
	FlagThirdParty
	// FlagFirstParty tells that the request is a first-party one.
	FlagFirstParty
)

// TypeAll is the mask of all resource types.
const TypeAll = TypeScript | TypeImage | TypeStylesheet | TypeObject |
	TypeXMLHTTPRequest | TypeObjectSubrequest | TypeSubdocument | TypeDocument |
	TypeOther | TypePing | TypeFont | TypeMedia | TypeWebsocket | TypeWebRTC |
	TypePopup

// typeOptions maps the names of resource-type modifiers to their flags.
var typeOptions = map[string]FilterOption{
	"script":            TypeScript,
	"image":             TypeImage,
	"stylesheet":        TypeStylesheet,
	"object":            TypeObject,
	"xmlhttprequest":    TypeXMLHTTPRequest,
	"object-subrequest": TypeObjectSubrequest,
	"subdocument":       TypeSubdocument,
	"document":          TypeDocument,
	"other":             TypeOther,
	"ping":              TypePing,
	"font":              TypeFont,
	"media":             TypeMedia,
	"websocket":         TypeWebsocket,
	"webrtc":            TypeWebRTC,
	"popup":             TypePopup,
}

// ParseFilterOptions converts a comma-separated list of resource type names,
// e.g. "script,third-party", into a bitmask.  Unknown names are returned in
// unknown.
func ParseFilterOptions(s string) (opts FilterOption, unknown []string) {
	for _, name := range strings.Split(s, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		switch name {
		case "":
			// Go on.
		case "third-party":
			opts |= FlagThirdParty
		case "first-party":
			opts |= FlagFirstParty
		default:
			if t, ok := typeOptions[name]; ok {
				opts |= t
			} else {
				unknown = append(unknown, name)
			}
		}
	}

	return opts, unknown
}

// NetworkRuleOption is the enumeration of the rule modifiers which are not
// resource types.  In order to save memory, we store them as flags.
type NetworkRuleOption uint32

// NetworkRuleOption enumeration
const (
	OptionThirdParty NetworkRuleOption = 1 << iota // $third-party modifier
	OptionMatchCase                                // $match-case modifier
)
