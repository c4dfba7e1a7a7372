// Package common holds the pieces shared by the rkv commands: the logger factory that
// gives every package logger the same line format, and the Config type the command line
// flags and RKV_* environment variables are read into.
package common
