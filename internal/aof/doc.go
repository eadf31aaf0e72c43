// Package aof encodes and decodes AOF replay containers.
//
// An AOF file holds the metadata, player roster, keyframes and chunks of a
// recorded match in one big-endian byte stream. Encode always writes the
// current revision (12); Decode reads every revision from 8 onward except 9.
//
// # Layout (revision 12)
//
//	[revision:1][region:1][gameIdHigh:4][gameIdLow:4]
//	[major:1][minor:1][patch:1][keyLen:1][key]
//	[complete:1][endStartupChunkId:1][startGameChunkId:1]
//	[playerCount:1] playerCount * (
//	    [id:4][nameLen:1][name][team:1][league:1][rank:1]
//	    [champion:4][spell1:4][spell2:4])
//	[keyframeCount:2] keyframeCount * ([id:2][len:4][data])
//	[chunkCount:2]    chunkCount    * ([id:2][len:4][data])
//
// # Older revisions
//
//   - 8: game id is a single uint32; counts and fragment ids are 1 byte.
//   - 9: written by a broken release; always rejected.
//   - 10: as 8 but with the split game id.
//   - 11: 2-byte counts; each fragment carries a 1-byte id slot that is
//     ignored, ids are assigned 1..N by position.
//
// Revisions below 8 are rejected as obsolete.
//
// # Completeness
//
// The completeness byte is 1 when, for both keyframes and chunks, the number
// of fragments equals the highest id. Earlier writers compared fragment
// counts against the length of an id-indexed array with an unused slot 0;
// readers still expect that flag.
//
// Encode and Decode are pure functions of their input. They are safe for
// concurrent use and perform no I/O.
package aof
