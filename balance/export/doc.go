// Package export writes derived engines as CSV or as per-part config files
// rendered from a template.
//
// Values are rounded to a number of significant digits here and nowhere
// else; the engine package always works at full precision.
//
// Templates are plain text with $NAME$, $MODULE$, $INDEX$, $MASS$,
// $THRUST$, $VACISP$ and $ATMISP$ placeholders:
//
//	PART
//	{
//		name = $NAME$
//		mass = $MASS$
//		MODULE
//		{
//			name = $MODULE$
//			maxThrust = $THRUST$
//			atmosphereCurve
//			{
//				key = 0 $VACISP$
//				key = 1 $ATMISP$
//			}
//		}
//	}
package export
