// Package dataset enumerates recorded takes under the dataset root.
//
// A take exists when the first camera's recording `take_NN_<serial>.bag` is
// present in an action directory; the second camera's file is checked later
// by the take processor, which reports a missing partner as a skip.
package dataset
