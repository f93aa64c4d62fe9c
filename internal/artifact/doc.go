// Package artifact models the set of files a translation produces.
//
// A Tree maps slash-separated relative paths to file contents. Trees are
// built either by reading a directory from disk or by collecting a
// translator's output in memory before it is persisted. Two trees are
// aligned purely by relative path; map order never matters, and every
// listing a Tree hands out is sorted by path so that diagnostics are
// reproducible across runs and platforms.
//
// Writes replace the destination directory atomically: the tree is staged
// in a sibling temporary directory and renamed into place, so a reader never
// observes a half-written reference tree.
package artifact
