package keywords

import "strings"

func wordSet(words string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}

// englishStopWords filters keyphrase candidates.
var englishStopWords = wordSet(`
	a about above across after afterwards again against all almost alone along already also
	although always am among amongst an and another any anyhow anyone anything anyway anywhere
	are around as at back be became because become becomes becoming been before beforehand
	behind being below beside besides between beyond both but by can cannot could did do does
	doing done down due during each either else elsewhere enough etc even ever every everyone
	everything everywhere except few first for former formerly from further get give go had has
	have having he hence her here hereafter hereby herein hers herself him himself his how however
	i if in indeed into is it its itself just keep last latter least less made many may me
	meanwhile might mine more moreover most mostly much must my myself namely neither never
	nevertheless next no nobody none noone nor not nothing now nowhere of off often on once one
	only onto or other others otherwise our ours ourselves out over own per perhaps please put
	rather re same see seem seemed seeming seems several she should since so some somehow someone
	something sometime sometimes somewhere still such than that the their theirs them themselves
	then thence there thereafter thereby therefore therein thereupon these they this those though
	through throughout thru thus to together too toward towards under until up upon us very via
	was we well were what whatever when whence whenever where whereafter whereas whereby wherein
	whereupon wherever whether which while whither who whoever whole whom whose why will with
	within without would yet you your yours yourself yourselves
`)

// densityStopWords covers English, German, French, Italian and Spanish for
// site-wide keyword density.
var densityStopWords = wordSet(`
	the a an and or for to of in on with is are was were be by as it this that from at your you we they i our their
	der die das den dem des ein eine einer eines einem einen zur zum bei aus nach vor von mit über durch um nicht
	und oder aber auch wenn dann als wie so noch nur schon mehr sehr viel bereits sein seine ihr ihre hat haben
	wird werden kann können muss müssen soll sollen will wollen wurde wurden ist sind war waren
	ich du er sie es wir ihnen sich mich dich uns euch ihm ihn man
	auf an zu unter für gegen ohne bis seit zwischen hinter neben während
	dieser diese dieses jener jene jenes welcher welche welches solcher solche solches aller alle alles
	mein meine meiner meines meinem meinen dein deine deiner deines deinem deinen
	unser unsere unserer unseres unserem unseren euer eure eurer eures eurem euren
	le la les un une des de du à au aux et ou mais donc car ni ne pas plus moins très tout tous toute toutes
	ce cette ces mon ma mes ton ta tes son sa ses notre nos votre vos leur leurs
	je tu il elle nous vous ils elles on me te se lui en y
	être avoir faire dire aller voir venir pouvoir vouloir devoir savoir prendre mettre donner
	lo gli uno una dei degli delle di da con su per tra fra
	che e o ma anche se non più molto questo quello come quando dove
	io lei noi voi loro mi ti si ci vi
	essere avere fare andare potere volere dovere sapere prendere mettere dare
	el los las unos unas del al por para sobre entre
	que y pero también si no más muy este esta estos estas ese esa esos esas
	yo tú él ella nosotros vosotros ellos ellas nos os
	ser estar haber tener hacer ir poder querer deber saber poner dar
`)
