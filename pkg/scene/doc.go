// Package scene defines the declarative scene description for facet.
// A scene is a set of named parts, each a tree of solid shapes, arranged
// by assemblies. Scenes are built by the Lisp engine or loaded from YAML.
package scene
