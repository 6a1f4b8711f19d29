// Package scan discovers buildable example projects under an example root.
//
// A Scanner walks a directory tree in pre-order and asks a Predicate about
// every directory it visits. A matching directory is reported as a project
// and its subdirectories are not visited, so the first match along any path
// wins.
package scan
