// Package extref links names that are not declared in the analysed sources
// to external API documentation such as MSDN or the Unity scripting
// reference.
package extref

import (
	"maps"
	"slices"
	"strings"
)

// SearchPage holds the URL templates for one documentation package. Both
// templates substitute the target for %s.
type SearchPage struct {
	API    string `yaml:"api" json:"api" validate:"required,contains=%s"`
	Search string `yaml:"search" json:"search" validate:"required,contains=%s"`
}

// Data is the table driving external linking and type shortening.
type Data struct {
	ShortenTypePrefixes []string                       `yaml:"shorten_type_prefixes,omitempty" json:"shorten_type_prefixes,omitempty"`
	IgnoreXref          []string                       `yaml:"ignore_xref,omitempty" json:"ignore_xref,omitempty"`
	TypeMap             map[string]map[string][]string `yaml:"ext_type_map,omitempty" json:"ext_type_map,omitempty"`
	TypeRename          map[string]string              `yaml:"external_type_rename,omitempty" json:"external_type_rename,omitempty"`
	SearchPages         map[string]SearchPage          `yaml:"ext_search_pages,omitempty" json:"ext_search_pages,omitempty" validate:"dive"`
}

// Defaults returns a fresh copy of the built-in tables.
func Defaults() Data {
	return Data{
		ShortenTypePrefixes: []string{
			"System.",
			"System.IO",
			"System.Collections.Generic.",
		},
		IgnoreXref: []string{
			"*", "&", "void",
			"string", "bool", "int", "long", "uint", "ulong",
			"float", "double", "byte", "object",
		},
		TypeMap: map[string]map[string][]string{
			"msdn": {
				"System":                         {"Tuple", "IDisposable", "ICloneable", "IComparable", "Func", "Action"},
				"System.Collections":             {"IEnumerator"},
				"System.Collections.Generic":     {"List", "Dictionary", "IList", "IDictionary", "ISet", "IEnumerable"},
				"System.Threading":               {"Thread"},
				"System.Runtime.InteropServices": {"GCHandle", "Marshal"},
			},
			"unity": {
				"": {
					"MonoBehaviour", "ScriptableObject",
					"GameObject", "Transform", "RectTransform",
					"Mesh", "MeshRenderer", "MeshFilter", "Animator",
					"Collider", "SphereCollider", "BoxCollider",
					"Material", "Sprite",
					"Vector2", "Vector3", "Vector4", "Quaternion", "Color", "Gradient",
					"Coroutine", "Space", "LayerMask", "Layer",
					"AssetPostprocessor",
				},
				"XR":                          {"InputDevice"},
				"Unity.Collections":           {"NativeArray"},
				"Experimental.AssetImporters": {"AssetImportContext", "MeshImportPostprocessor", "ScriptedImporter"},
				"Rendering":                   {"VertexAttributeDescriptor"},
				"Events":                      {"UnityAction"},
			},
			"upm.xrtk": {"UnityEngine.XR.Interaction.Toolkit": {"XRRayInteractor", "XRBaseInteractable", "XRController"}},
			"upm.tmp":  {"TMPro": {"TMP_Text"}},
			"upm.ugui": {"": {"Image", "Button", "Toggle"}},
		},
		TypeRename: map[string]string{
			"List":        "List-1",
			"Dictionary":  "Dictionary-2",
			"IList":       "IList-1",
			"IDictionary": "IDictionary-2",
			"ISet":        "ISet-2",
			"IEnumerable": "IEnumerable-1",
			"Func":        "Func-1",
		},
		SearchPages: map[string]SearchPage{
			"msdn": {
				API:    "https://docs.microsoft.com/en-us/dotnet/api/%s",
				Search: "https://docs.microsoft.com/en-us/search/?category=All&scope=.NET&terms=%s",
			},
			"unity": {
				API:    "https://docs.unity3d.com/ScriptReference/%s.html",
				Search: "https://docs.unity3d.com/ScriptReference/30_search.html?q=%s",
			},
			"unityman": {
				API:    "https://docs.unity3d.com/Manual/%s.html",
				Search: "https://docs.unity3d.com/Manual/30_search.html?q=%s",
			},
			"upm": {
				API:    "https://docs.unity3d.com/Packages/%s",
				Search: "https://docs.unity3d.com/Packages/%s",
			},
		},
	}
}

func appendMissing(dst []string, src ...string) []string {
	for _, s := range src {
		if !slices.Contains(dst, s) {
			dst = append(dst, s)
		}
	}
	return dst
}

// Merge returns d extended with o. Lists are appended, maps are updated and
// type map namespaces present in both are concatenated, so configuration can
// add to the defaults but never removes from them.
func (d Data) Merge(o Data) Data {
	out := Data{
		ShortenTypePrefixes: appendMissing(slices.Clone(d.ShortenTypePrefixes), o.ShortenTypePrefixes...),
		IgnoreXref:          appendMissing(slices.Clone(d.IgnoreXref), o.IgnoreXref...),
		TypeRename:          maps.Clone(d.TypeRename),
		SearchPages:         maps.Clone(d.SearchPages),
		TypeMap:             make(map[string]map[string][]string, len(d.TypeMap)),
	}
	if out.TypeRename == nil {
		out.TypeRename = map[string]string{}
	}
	if out.SearchPages == nil {
		out.SearchPages = map[string]SearchPage{}
	}
	maps.Copy(out.TypeRename, o.TypeRename)
	maps.Copy(out.SearchPages, o.SearchPages)

	for pkg, nss := range d.TypeMap {
		out.TypeMap[pkg] = make(map[string][]string, len(nss))
		for ns, names := range nss {
			out.TypeMap[pkg][ns] = slices.Clone(names)
		}
	}
	for pkg, nss := range o.TypeMap {
		if out.TypeMap[pkg] == nil {
			out.TypeMap[pkg] = make(map[string][]string, len(nss))
		}
		for ns, names := range nss {
			out.TypeMap[pkg][ns] = appendMissing(out.TypeMap[pkg][ns], names...)
		}
	}
	return out
}

// Ignored reports whether name is a built-in keyword or other token that is
// never linked.
func (d Data) Ignored(name string) bool {
	return slices.Contains(d.IgnoreXref, strings.TrimSpace(name))
}

// searchPage returns the templates for pkg. A dotted package such as
// "upm.xrtk" falls back to the pages of its first segment.
func (d Data) searchPage(pkg string) (SearchPage, bool) {
	if p, ok := d.SearchPages[pkg]; ok {
		return p, true
	}
	if head, _, ok := strings.Cut(pkg, "."); ok {
		p, ok := d.SearchPages[head]
		return p, ok
	}
	return SearchPage{}, false
}
