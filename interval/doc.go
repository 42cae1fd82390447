/*Package interval holds sets of genomic positions, loaded from BED files or
  samtools-style region strings, and answers point and range membership
  queries against them.
  Overlapping input intervals are merged.  Positions are 0-based and must fit
  in a PosType.
*/
package interval
