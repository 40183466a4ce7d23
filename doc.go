// Package ogtree is a library for decoding Python's pickle format into a
// plain value tree, without executing anything.
//
// Use Decoder to decode a pickle from input stream, for example:
//
//	d := ogtree.NewDecoder(r)
//	v, err := d.Decode() // v is ogtree.Value representing decoded Python object
//
// or Unpickle, UnpickleBase64 and UnpickleSignedBase64 to decode a pickle
// held in memory.
//
// The following table summarizes how Python values are represented:
//
//	Python	   Go
//	------	   --
//
//	None	   ogtree.None
//	bool	   ogtree.Bool
//	int, long  ogtree.Int         (arbitrary precision)
//	float	   ogtree.Float
//	str	   ogtree.Bytes       (+)
//	unicode	   ogtree.Bytes       (+)
//	list	   *ogtree.Sequence   (Tuple=false)
//	tuple	   *ogtree.Sequence   (Tuple=true)
//	dict	   *ogtree.Mapping
//
// Python classes, instances and other objects that Python would construct
// by calling code are represented with placeholders, for example:
//
//	Python				Go
//	------	   			--
//
//	decimal.Decimal            	ogtree.Global{"decimal", "Decimal"}
//	decimal.Decimal("3.14")    	&ogtree.Reduce{
//						Callable: ogtree.Global{"decimal", "Decimal"},
//						Arg:      ogtree.NewTuple(ogtree.Bytes("3.14")),
//					}
//
// The decoder never imports, resolves or calls anything named in the stream.
// In particular it is thus safe to decode pickles from untrusted sources(^).
// Resource use is bounded by Limits.
//
// Placeholders can be turned into application objects after decoding with
// ToGo and a Resolver.
//
//
// Pickle protocol versions
//
// Protocols 0, 1 and 2 are understood; these are the protocols produced by
// Python 2. Opcodes introduced by later protocols are reported as
// ErrUnknownOpcode.
//
//
// Sharing
//
// A pickle may refer to an already decoded object via its memo. Lists, dicts
// and placeholders are pointers in the decoded tree, so such references
// share one instance, and a structure may even contain itself. Code walking
// a decoded tree must be prepared for that; Equal, Repr and ToGo are.
//
//
// --------
//
// (+) strings are not decoded from any character set; the bytes of the
// stream are returned as is. Protocol 0 STRING and UNICODE arguments keep
// their quotes and escapes unless DecoderConfig.DecodeEscapes is set.
//
// (^) contrary to Python implementation, where malicious pickle can cause the
// decoder to run arbitrary code, including e.g. os.system("rm -rf /").
package ogtree
