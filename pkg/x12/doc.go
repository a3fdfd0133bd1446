// Package x12 detects X12 delimiters and splits raw interchange text into
// segments of scalar and composite elements.
//
// The parser is structural only. It does not check segment identifiers,
// envelopes or trailer counts:
//
//	segments, d, err := x12.ParseDetect(text)
//	if err != nil {
//	    return err
//	}
//	back := x12.Format(segments, d)
package x12
