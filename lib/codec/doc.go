// Package codec converts values to and from the byte payloads stored by a store.IStore.
//
// A persisted record is exactly one encoded payload with no envelope around it. A
// record can also hold the codec's null tombstone, which is how an explicit null value is
// stored. Reading a tombstone back yields null, while a missing record means the key was
// never written.
//
// Available codecs:
//
//   - JSON (default): human readable, tombstone is the literal null. Values whose
//     encoding is itself null (nil maps or slices) read back as null.
//   - GOB: Go's binary format, tombstone is a single zero byte. Only exported fields
//     are encoded.
package codec
